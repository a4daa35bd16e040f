package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := conn(ctx, r.db).Create(s).Error; err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	if err := conn(ctx, r.db).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id string, lastAccessed, expiresAt time.Time) error {
	err := conn(ctx, r.db).Model(&domain.Session{}).Where("id = ?", id).Updates(map[string]any{
		"last_accessed": lastAccessed.UTC(),
		"expires_at":    expiresAt.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := conn(ctx, r.db).Where("id = ?", id).Delete(&domain.Session{}).Error; err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.db).Where("expires_at <= ?", now.UTC()).Delete(&domain.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
