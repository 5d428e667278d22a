package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/expense-desk/internal/application/port"
	"go.uber.org/zap"
)

// messageSender is the part of SDKClient the messenger needs
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Messenger implements port.Messenger by sending Lark text messages addressed by email
type Messenger struct {
	sender messageSender
	logger *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{sender: client, logger: logger}
}

// SendText sends a plain-text message to the Lark user registered under recipient's email
func (m *Messenger) SendText(ctx context.Context, recipient string, content string) error {
	if recipient == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	messageID, err := m.sender.SendMessage(ctx, "email", recipient, "text", string(body))
	if err != nil {
		m.logger.Error("Failed to send Lark message", zap.String("recipient", recipient), zap.Error(err))
		return err
	}

	m.logger.Info("Lark message sent", zap.String("message_id", messageID), zap.String("recipient", recipient))
	return nil
}

// LogMessenger implements port.Messenger by logging messages. It stands in when Lark is not configured.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger creates a new LogMessenger
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

// SendText logs the message
func (m *LogMessenger) SendText(ctx context.Context, recipient string, content string) error {
	m.logger.Info("Notification", zap.String("recipient", recipient), zap.String("content", content))
	return nil
}

// Verify interface compliance
var (
	_ port.Messenger = (*Messenger)(nil)
	_ port.Messenger = (*LogMessenger)(nil)
)
