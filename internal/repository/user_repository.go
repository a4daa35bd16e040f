package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if err := conn(ctx, r.db).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := conn(ctx, r.db).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := conn(ctx, r.db).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user by email: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	var users []*domain.User
	err := conn(ctx, r.db).
		Where("role = ?", role).
		Order("display_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s users: %w", role, err)
	}
	return users, nil
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, id int64, name string) error {
	res := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", id).Update("display_name", name)
	if res.Error != nil {
		return fmt.Errorf("updating display name: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordLoginFailure increments the failure counter in one statement and sets
// lockedUntil once the counter reaches maxAttempts. A lock that has already
// expired at now starts a fresh count.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id int64, maxAttempts int, now, lockedUntil time.Time) error {
	now = now.UTC()
	count := gorm.Expr("CASE WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1 ELSE failed_login_count + 1 END", now)
	err := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": count,
		"locked_until": gorm.Expr(
			"CASE WHEN ? >= ? THEN ? WHEN locked_until IS NOT NULL AND locked_until <= ? THEN NULL ELSE locked_until END",
			count, maxAttempts, lockedUntil.UTC(), now,
		),
	}).Error
	if err != nil {
		return fmt.Errorf("recording login failure: %w", err)
	}
	return nil
}

func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	err := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": 0,
		"locked_until":       nil,
		"last_login_at":      at.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("recording login success: %w", err)
	}
	return nil
}
