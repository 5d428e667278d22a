package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
)

// NotificationService tells people about lifecycle changes that concern them
type NotificationService interface {
	// Register subscribes the service to the lifecycle events it reacts to
	Register(d dispatcher.Dispatcher)

	NotifyApprovers(ctx context.Context, evt *event.Event) error
	NotifyOwner(ctx context.Context, evt *event.Event) error
	NotifyPromoted(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	profileRepo   port.ProfileRepository
	messenger     port.Messenger
	approverRoles []entity.Role
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	profileRepo port.ProfileRepository,
	messenger port.Messenger,
	approverRoles []entity.Role,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		profileRepo:   profileRepo,
		messenger:     messenger,
		approverRoles: approverRoles,
		logger:        orNop(logger),
	}
}

// Register subscribes to submitted, decided and promoted events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeExpenseSubmitted, "notify-approvers", s.NotifyApprovers)
	d.SubscribeNamed(event.TypeExpenseApproved, "notify-owner", s.NotifyOwner)
	d.SubscribeNamed(event.TypeExpenseRejected, "notify-owner", s.NotifyOwner)
	d.SubscribeNamed(event.TypeProfilePromoted, "notify-promoted", s.NotifyPromoted)
}

// NotifyApprovers tells every approver that an expense awaits review
func (s *notificationServiceImpl) NotifyApprovers(ctx context.Context, evt *event.Event) error {
	approvers, err := s.profileRepo.ListByRoles(ctx, s.approverRoles)
	if err != nil {
		s.logger.Error("Failed to list approvers", "error", err, "expense_id", evt.SubjectID)
		return fmt.Errorf("list approvers: %w", err)
	}

	message := fmt.Sprintf(
		"Expense awaiting review\n\nMerchant: %s\nAmount: %s\nExpense ID: %s",
		evt.GetPayloadString("merchant"),
		evt.GetPayloadString("amount"),
		evt.SubjectID,
	)

	var failed []string
	sent := 0
	for _, approver := range approvers {
		if approver.ID == evt.GetPayloadString("owner_id") {
			continue
		}
		if err := s.messenger.SendText(ctx, approver.Email, message); err != nil {
			s.logger.Error("Failed to notify approver", "error", err, "approver_id", approver.ID, "expense_id", evt.SubjectID)
			failed = append(failed, approver.ID)
			continue
		}
		sent++
	}

	s.logger.Info("Approvers notified", "expense_id", evt.SubjectID, "sent", sent, "failed", len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("notify approvers: %d of %d failed: %s", len(failed), len(failed)+sent, strings.Join(failed, ","))
	}
	return nil
}

// NotifyOwner tells the owner that their expense was approved or rejected
func (s *notificationServiceImpl) NotifyOwner(ctx context.Context, evt *event.Event) error {
	ownerID := evt.GetPayloadString("owner_id")
	owner, err := s.profileRepo.GetByID(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to get owner profile", "error", err, "owner_id", ownerID)
		return fmt.Errorf("get owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("owner %s: %w", ownerID, entity.ErrNotFound)
	}

	message := BuildDecisionMessage(evt)
	if err := s.messenger.SendText(ctx, owner.Email, message); err != nil {
		s.logger.Error("Failed to notify owner", "error", err, "owner_id", ownerID, "expense_id", evt.SubjectID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Owner notified", "owner_id", ownerID, "expense_id", evt.SubjectID, "event_type", evt.Type)
	return nil
}

// NotifyPromoted tells a user they now hold the admin role
func (s *notificationServiceImpl) NotifyPromoted(ctx context.Context, evt *event.Event) error {
	email := evt.GetPayloadString("email")
	if email == "" {
		return nil
	}
	if err := s.messenger.SendText(ctx, email, "You have been granted administrator access to the expense desk."); err != nil {
		s.logger.Error("Failed to notify promoted user", "error", err, "profile_id", evt.SubjectID)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// BuildDecisionMessage renders the owner notification for an approval decision
func BuildDecisionMessage(evt *event.Event) string {
	merchant := evt.GetPayloadString("merchant")
	amount := evt.GetPayloadString("amount")

	if evt.Type == event.TypeExpenseRejected {
		return fmt.Sprintf(
			"Your expense was rejected\n\nMerchant: %s\nAmount: %s\nReason: %s\n\nCreate a new expense to resubmit.",
			merchant, amount, evt.GetPayloadString("reason"),
		)
	}
	return fmt.Sprintf(
		"Your expense was approved\n\nMerchant: %s\nAmount: %s",
		merchant, amount,
	)
}
