package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/application/workflow"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
	"github.com/garyjia/expense-desk/pkg/utils"
)

// ProfileService exposes profiles and the admin promotion procedure
type ProfileService interface {
	Get(ctx context.Context, caller entity.Identity, id string) (*entity.Profile, error)
	List(ctx context.Context, caller entity.Identity) ([]*entity.Profile, error)
	PromoteToAdmin(ctx context.Context, caller entity.Identity, email string) (*entity.Profile, error)
	// BootstrapAdmin promotes without a caller check. Only operator tooling uses it.
	BootstrapAdmin(ctx context.Context, email string) (*entity.Profile, error)
}

type profileServiceImpl struct {
	profileRepo port.ProfileRepository
	policy      *workflow.RolePolicy
	dispatcher  dispatcher.Dispatcher
	logger      Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(profileRepo port.ProfileRepository, policy *workflow.RolePolicy, d dispatcher.Dispatcher, logger Logger) ProfileService {
	return &profileServiceImpl{
		profileRepo: profileRepo,
		policy:      policy,
		dispatcher:  d,
		logger:      orNop(logger),
	}
}

// Get returns a profile. Callers may read their own; admins and approvers may read any.
func (s *profileServiceImpl) Get(ctx context.Context, caller entity.Identity, id string) (*entity.Profile, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if id != caller.UserID && !caller.Role.IsAdmin() && !s.policy.IsApprover(caller.Role) {
		return nil, fmt.Errorf("profile %s: %w", id, entity.ErrNotFound)
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", id, entity.ErrNotFound)
	}
	return profile, nil
}

// List returns every profile, newest first. Admin only.
func (s *profileServiceImpl) List(ctx context.Context, caller entity.Identity) ([]*entity.Profile, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	profiles, err := s.profileRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list profiles", "error", err)
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if profiles == nil {
		profiles = []*entity.Profile{}
	}
	return profiles, nil
}

// PromoteToAdmin sets the admin role on the profile with the given email. Admin only.
func (s *profileServiceImpl) PromoteToAdmin(ctx context.Context, caller entity.Identity, email string) (*entity.Profile, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.promote(ctx, caller.UserID, email)
}

// BootstrapAdmin promotes the first administrator from the command line
func (s *profileServiceImpl) BootstrapAdmin(ctx context.Context, email string) (*entity.Profile, error) {
	return s.promote(ctx, "", email)
}

func (s *profileServiceImpl) promote(ctx context.Context, actorID, email string) (*entity.Profile, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	profile, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("no profile with email %s: %w", email, entity.ErrNotFound)
	}
	if profile.Role == entity.RoleAdmin {
		return profile, nil
	}

	if err := s.profileRepo.UpdateRole(ctx, profile.ID, entity.RoleAdmin); err != nil {
		s.logger.Error("Failed to promote profile", "error", err, "profile_id", profile.ID)
		return nil, fmt.Errorf("promote profile: %w", err)
	}
	previous := profile.Role
	profile.Role = entity.RoleAdmin

	s.logger.Info("Profile promoted to admin", "profile_id", profile.ID, "actor_id", actorID)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeProfilePromoted, profile.ID, actorID, map[string]interface{}{
			"email":         profile.Email,
			"previous_role": string(previous),
		}))
	}
	return profile, nil
}

func requireAdmin(caller entity.Identity) error {
	if caller.UserID == "" {
		return entity.ErrUnauthenticated
	}
	if !caller.Role.IsAdmin() {
		return fmt.Errorf("admin role required: %w", entity.ErrForbidden)
	}
	return nil
}
