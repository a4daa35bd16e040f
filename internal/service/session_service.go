package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.uber.org/zap"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Touch(ctx context.Context, id string, lastAccessed, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// IssuedSession is a freshly signed cookie value.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// ResolvedSession is the outcome of authenticating a cookie.
type ResolvedSession struct {
	Caller domain.Caller
	User   *domain.User
	// Refreshed is set when the cookie should be rewritten with a new token.
	Refreshed *IssuedSession
}

type SessionService struct {
	sessions SessionRepository
	users    UserRepository
	patients patient.Repository
	tokens   *auth.TokenManager
	ttl      time.Duration
	cleanup  float64
	metrics  *metrics.Collector
	log      *zap.Logger

	now    func() time.Time
	chance func() float64
}

func NewSessionService(
	sessions SessionRepository,
	users UserRepository,
	patients patient.Repository,
	tokens *auth.TokenManager,
	cfg config.SessionConfig,
	m *metrics.Collector,
	log *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		patients: patients,
		tokens:   tokens,
		ttl:      cfg.TTL,
		cleanup:  cfg.CleanupProbability,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		chance:   rand.Float64,
	}
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Start creates a session row for userID and signs a token for it.
func (s *SessionService) Start(ctx context.Context, userID int64) (*IssuedSession, error) {
	id, err := auth.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now().Truncate(time.Second)
	sess := &domain.Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return s.issue(sess.ID, userID, now, sess.ExpiresAt)
}

func (s *SessionService) issue(sessionID string, userID int64, now, expiresAt time.Time) (*IssuedSession, error) {
	token, err := s.tokens.Issue(auth.SessionToken{
		SessionID: sessionID,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve authenticates a cookie token. Any failure to find a live session
// is reported as ErrUnauthenticated.
func (s *SessionService) Resolve(ctx context.Context, token string) (*ResolvedSession, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	now := s.now().Truncate(time.Second)
	if sess.IsExpired(now) || sess.UserID != claims.UserID {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	caller := domain.Caller{
		UserID:      user.ID,
		Role:        user.Role,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		SessionID:   sess.ID,
	}
	if user.Role == domain.RolePatient {
		p, err := s.patients.GetByUserID(ctx, user.ID)
		switch {
		case err == nil:
			caller.PatientID = &p.ID
		case !errors.Is(err, patient.ErrPatientNotFound):
			return nil, err
		}
	}

	expiresAt := now.Add(s.ttl)
	if err := s.sessions.Touch(ctx, sess.ID, now, expiresAt); err != nil {
		return nil, err
	}

	out := &ResolvedSession{Caller: caller, User: user}
	if claims.ExpiresAt.Sub(now) < s.ttl/2 {
		out.Refreshed, err = s.issue(sess.ID, user.ID, now, expiresAt)
		if err != nil {
			return nil, err
		}
	}

	if s.cleanup > 0 && s.chance() < s.cleanup {
		s.purge(ctx, now)
	}
	return out, nil
}

// End deletes the session. Deleting a missing session is not an error.
func (s *SessionService) End(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every session expired at the current time and reports how many went.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.deleteExpired(ctx, s.now())
}

func (s *SessionService) purge(ctx context.Context, now time.Time) {
	n, err := s.deleteExpired(ctx, now)
	if err != nil {
		s.log.Warn("expired session cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("purged expired sessions", zap.Int64("count", n))
	}
}

func (s *SessionService) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	if s.metrics != nil && n > 0 {
		s.metrics.SessionsPurgedTotal.Add(float64(n))
	}
	return n, nil
}
