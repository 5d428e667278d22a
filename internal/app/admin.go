package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// CanPromote reports whether the promote control is offered on a profile
// row: never for the viewer's own row and never for an existing admin
func CanPromote(viewer AuthContext, profile *entity.Profile) bool {
	if profile == nil || !viewer.IsAdmin {
		return false
	}
	return profile.ID != viewer.Identity.UserID && !profile.Role.IsAdmin()
}

// AdminController is the admin management page
type AdminController struct {
	data     port.DataService
	runner   *Runner
	notifier Notifier
	logger   *zap.Logger

	mu       sync.RWMutex
	profiles []*entity.Profile
}

// NewAdminController creates the admin management controller
func NewAdminController(data port.DataService, runner *Runner, notifier Notifier, logger *zap.Logger) *AdminController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminController{
		data:     data,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		profiles: []*entity.Profile{},
	}
}

// Load reads every profile. Non-admins get KindForbidden and no read is issued.
func (c *AdminController) Load(ctx context.Context, auth AuthContext) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.IsAdmin {
		return failed(entity.ErrForbidden)
	}

	profiles, err := c.data.ListProfiles(ctx)
	if err != nil {
		res := failed(err)
		c.logger.Error("Failed to fetch profiles", zap.Error(err))
		notifyError(c.notifier, "Failed to load user profiles", res)
		return res
	}

	c.mu.Lock()
	c.profiles = profiles
	c.mu.Unlock()
	return ok()
}

// Profiles returns the rows of the last successful read
func (c *AdminController) Profiles() []*entity.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles
}

// Busy reports whether a promotion of the profile is in flight
func (c *AdminController) Busy(profileID string) bool {
	return c.runner.Busy(profileKey(profileID))
}

// Promote elevates the profile to admin and reloads the list on success
func (c *AdminController) Promote(ctx context.Context, auth AuthContext, profile *entity.Profile) Result {
	if !CanPromote(auth, profile) {
		return failed(entity.ErrForbidden)
	}

	res := c.runner.Do(ctx, profileKey(profile.ID), func(ctx context.Context) error {
		return c.data.PromoteUserToAdmin(ctx, profile.Email)
	})
	if res.Kind == KindIndeterminate {
		c.logger.Warn("Promotion outcome unknown", zap.String("email", profile.Email), zap.Error(res.Err))
		notifyIndeterminate(c.notifier, res)
		c.Load(ctx, auth)
		return res
	}
	if !res.Succeeded() {
		if res.Kind != KindBusy {
			c.logger.Error("Failed to promote user", zap.String("email", profile.Email), zap.Error(res.Err))
			notifyError(c.notifier, "Failed to promote user to admin", res)
		}
		return res
	}

	notifySuccess(c.notifier, fmt.Sprintf("Successfully promoted %s to admin", profile.Email))
	c.Load(ctx, auth)
	return res
}

func profileKey(id string) string {
	return "profile:" + id
}
