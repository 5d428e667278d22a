package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

var profileColumns = []string{"id", "email", "full_name", "role", "password_hash", "created_at", "updated_at"}

// ProfileRepository implements port.ProfileRepository
type ProfileRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlite.DB, logger *zap.Logger) port.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a profile. A duplicate email surfaces as entity.ErrConflict.
func (r *ProfileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	query, args, err := sq.Insert("profiles").
		Columns(profileColumns...).
		Values(profile.ID, profile.Email, profile.FullName, string(profile.Role), profile.PasswordHash,
			formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("profile %s: %w", profile.Email, entity.ErrConflict)
		}
		r.logger.Error("Failed to create profile", zap.String("profile_id", profile.ID), zap.Error(err))
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID. A missing row yields nil, nil.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a profile by its normalized email
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	return r.getOne(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

// List returns every profile, newest first
func (r *ProfileRepository) List(ctx context.Context) ([]*entity.Profile, error) {
	return r.list(ctx, sq.Select(profileColumns...).From("profiles").OrderBy("created_at DESC", "id"))
}

// ListByRoles returns the profiles holding any of the given roles
func (r *ProfileRepository) ListByRoles(ctx context.Context, roles []entity.Role) ([]*entity.Profile, error) {
	if len(roles) == 0 {
		return []*entity.Profile{}, nil
	}
	values := make([]string, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}
	return r.list(ctx, sq.Select(profileColumns...).
		From("profiles").
		Where(squirrel.Eq{"role": values}).
		OrderBy("created_at ASC", "id"))
}

// UpdateRole sets the role of a profile
func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role entity.Role) error {
	query, args, err := sq.Update("profiles").
		Set("role", string(role)).
		Set("updated_at", formatTime(r.now())).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update role", zap.String("profile_id", id), zap.Error(err))
		return fmt.Errorf("failed to update role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored profiles
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("profiles").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}
	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

func (r *ProfileRepository) getOne(ctx context.Context, where squirrel.Eq) (*entity.Profile, error) {
	query, args, err := sq.Select(profileColumns...).From("profiles").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	profile, err := scanProfile(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get profile", zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepository) list(ctx context.Context, builder squirrel.SelectBuilder) ([]*entity.Profile, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list profiles", zap.Error(err))
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*entity.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func scanProfile(row rowScanner) (*entity.Profile, error) {
	var (
		p    entity.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = entity.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Verify interface compliance
var _ port.ProfileRepository = (*ProfileRepository)(nil)
