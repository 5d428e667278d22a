package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// DefaultApproverRoles hold approval authority unless configured otherwise
var DefaultApproverRoles = []entity.Role{entity.RoleAdmin, entity.RoleManager, entity.RoleFinanceAdmin}

// AuthContext is the settled authorization state a controller reads with.
// The zero value is unsettled.
type AuthContext struct {
	Settled       bool
	Authenticated bool
	Identity      entity.Identity
	// IsAdmin is true only for the literal admin role
	IsAdmin bool
	// CanApprove is true for the configured approver roles
	CanApprove bool
	// LookupErr is the role lookup failure, if any. The identity keeps basic
	// access but gains no elevated capability.
	LookupErr error
}

// Anonymous is the settled context of a signed-out visitor
func Anonymous() AuthContext {
	return AuthContext{Settled: true}
}

// ReadScope returns the owner filter of a scoped read: empty for identities
// that may read every row, the caller's own id otherwise
func (a AuthContext) ReadScope() string {
	if a.CanApprove {
		return ""
	}
	return a.Identity.UserID
}

// AuthResolver turns a session into a settled AuthContext
type AuthResolver struct {
	data          port.DataService
	approverRoles map[entity.Role]bool
	logger        *zap.Logger
}

// NewAuthResolver creates a resolver. Nil roles select DefaultApproverRoles.
func NewAuthResolver(data port.DataService, approverRoles []entity.Role, logger *zap.Logger) *AuthResolver {
	if approverRoles == nil {
		approverRoles = DefaultApproverRoles
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := make(map[entity.Role]bool, len(approverRoles))
	for _, r := range approverRoles {
		roles[r] = true
	}
	return &AuthResolver{data: data, approverRoles: roles, logger: logger}
}

// Resolve looks up the session's role and returns the settled context.
// The result is always settled, including on lookup failure.
func (r *AuthResolver) Resolve(ctx context.Context, session *port.Session) AuthContext {
	if session == nil || session.UserID == "" {
		return Anonymous()
	}

	auth := AuthContext{
		Settled:       true,
		Authenticated: true,
		Identity:      entity.Identity{UserID: session.UserID, Email: session.Email},
	}

	profile, err := r.data.GetProfile(ctx, session.UserID)
	if err != nil {
		r.logger.Warn("Role lookup failed, continuing without elevated access",
			zap.String("user_id", session.UserID),
			zap.Error(err))
		auth.LookupErr = err
		return auth
	}

	auth.Identity.Role = profile.Role
	auth.IsAdmin = profile.Role.IsAdmin()
	auth.CanApprove = r.approverRoles[profile.Role]
	return auth
}
