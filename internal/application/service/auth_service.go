package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/pkg/auth"
	"github.com/garyjia/expense-desk/pkg/utils"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", entity.ErrUnauthenticated)
	// ErrEmailTaken is returned when signing up with a registered email
	ErrEmailTaken = fmt.Errorf("email already registered: %w", entity.ErrConflict)
)

// AuthResult is the outcome of a successful sign-up or sign-in
type AuthResult struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	User        *entity.Profile `json:"user"`
}

// AuthService issues and validates session tokens
type AuthService interface {
	SignUp(ctx context.Context, email, password, fullName string) (*AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate resolves a token to the caller, with the role as currently stored
	Authenticate(ctx context.Context, token string) (entity.Identity, error)
}

type authServiceImpl struct {
	profileRepo port.ProfileRepository
	jwtManager  *auth.JWTManager
	logger      Logger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(profileRepo port.ProfileRepository, jwtManager *auth.JWTManager, logger Logger) AuthService {
	return &authServiceImpl{
		profileRepo: profileRepo,
		jwtManager:  jwtManager,
		logger:      orNop(logger),
		now:         time.Now,
	}
}

// SignUp registers a new employee profile
func (s *authServiceImpl) SignUp(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	existing, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	profile := &entity.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     utils.SanitizeString(strings.TrimSpace(fullName)),
		Role:         entity.RoleEmployee,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		s.logger.Error("Failed to create profile", "error", err, "email", email)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("Profile registered", "profile_id", profile.ID)
	return s.issue(profile)
}

// SignIn verifies credentials and issues a token
func (s *authServiceImpl) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	profile, err := s.profileRepo.GetByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}
	if profile == nil || !auth.CheckPasswordHash(password, profile.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(profile)
}

// Authenticate validates a bearer token
func (s *authServiceImpl) Authenticate(ctx context.Context, token string) (entity.Identity, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
	}

	profile, err := s.profileRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("lookup profile: %w", err)
	}
	if profile == nil {
		return entity.Identity{}, fmt.Errorf("profile no longer exists: %w", entity.ErrUnauthenticated)
	}

	return entity.Identity{UserID: profile.ID, Email: profile.Email, Role: profile.Role}, nil
}

func (s *authServiceImpl) issue(profile *entity.Profile) (*AuthResult, error) {
	token, err := s.jwtManager.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtManager.GetTokenDuration().Seconds()),
		User:        profile,
	}, nil
}
