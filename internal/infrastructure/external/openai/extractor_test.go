package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChatClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (m *mockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: m.content}}},
	}, nil
}

func newTestExtractor(client chatClient) *Extractor {
	e := newExtractor(client, "test-model", 0, []string{"Meals", "Travel"}, zap.NewNop())
	e.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestExtractor_Extract(t *testing.T) {
	client := &mockChatClient{content: `{"merchant":" Uber ","amount":"$1,025.30","currency":"usd","category":"travel","description":"Airport ride","expense_date":"2026-10-17","confidence":"medium"}`}
	e := newTestExtractor(client)

	got, err := e.Extract(context.Background(), port.CaptureInput{Source: entity.SourceEmail, Text: "Your Uber receipt"})
	require.NoError(t, err)

	assert.Equal(t, "Uber", got.Merchant)
	assert.Equal(t, "1025.3", got.Amount.String())
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "Travel", got.Category)
	assert.Equal(t, "2026-10-17", got.ExpenseDate.Format(time.DateOnly))
	assert.Equal(t, entity.ConfidenceMedium, got.Confidence)

	assert.Equal(t, "test-model", client.lastReq.Model)
	require.Len(t, client.lastReq.Messages, 2)
	assert.Contains(t, client.lastReq.Messages[1].Content, "Your Uber receipt")
	assert.Contains(t, client.lastReq.Messages[1].Content, "Meals, Travel")
	assert.Contains(t, client.lastReq.Messages[1].Content, "2026-10-19")
}

func TestExtractor_FencedJSON(t *testing.T) {
	client := &mockChatClient{content: "Sure:\n```json\n{\"merchant\":\"Cafe {Bar}\",\"amount\":\"9\",\"category\":\"Snacks\",\"confidence\":\"certain\"}\n```"}

	got, err := newTestExtractor(client).Extract(context.Background(), port.CaptureInput{Source: entity.SourceSMS})
	require.NoError(t, err)
	assert.Equal(t, "Cafe {Bar}", got.Merchant)
	assert.Equal(t, "", got.Category, "unknown categories are dropped")
	assert.Equal(t, entity.ConfidenceLow, got.Confidence)
	assert.True(t, got.ExpenseDate.IsZero())
}

func TestExtractor_Errors(t *testing.T) {
	_, err := newTestExtractor(&mockChatClient{err: errors.New("rate limited")}).Extract(context.Background(), port.CaptureInput{})
	assert.Error(t, err)

	_, err = newTestExtractor(&mockChatClient{content: "no json here"}).Extract(context.Background(), port.CaptureInput{})
	assert.Error(t, err)
}
