package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
	minPasswordLength = 8
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) error
	RecordLoginFailure(ctx context.Context, id int64, maxAttempts int, now, lockedUntil time.Time) error
	RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error
}

// Transactor runs fn in one database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RegisterCommand struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthService struct {
	users    UserRepository
	tx       Transactor
	sessions *SessionService
	audit    *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewAuthService(
	users UserRepository,
	tx Transactor,
	sessions *SessionService,
	audit *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	return &AuthService{users: users, tx: tx, sessions: sessions, audit: audit, metrics: m, log: log}
}

// Register creates an unprivileged account and signs it in.
func (s *AuthService) Register(ctx context.Context, cmd RegisterCommand) (*domain.User, *IssuedSession, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	var err error
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(cmd.Email)
	name := strings.TrimSpace(cmd.DisplayName)
	if err = validateCredentials(email, cmd.Password, name); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, nil, err
	}
	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Role:         domain.RoleUser,
	}

	var issued *IssuedSession
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		var err error
		issued, err = s.sessions.Start(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	s.log.Info("account registered", zap.Int64("user_id", u.ID))
	return u, issued, nil
}

// Login checks a password and opens a session. Five consecutive failures
// lock the account for fifteen minutes.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.User, *IssuedSession, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	var err error
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		err = invalid("email and password are required")
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Same bcrypt cost as a real comparison.
		_, _ = auth.CheckPassword("", password)
		s.countLogin("unknown_user")
		err = ErrInvalidCredentials
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		s.countLogin("locked")
		err = &AccountLockedError{Remaining: user.LockedUntil.Sub(now)}
		return nil, nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		if ferr := s.users.RecordLoginFailure(ctx, user.ID, maxFailedAttempts, now, now.Add(lockDuration)); ferr != nil {
			s.log.Error("failed to record login failure", zap.Int64("user_id", user.ID), zap.Error(ferr))
		}
		s.log.Warn("failed login attempt", zap.String("email", email), zap.String("ip", ip))
		s.countLogin("bad_password")
		err = ErrInvalidCredentials
		return nil, nil, err
	}

	if err = s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, nil, err
	}
	issued, err := s.sessions.Start(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.countLogin("success")
	s.audit.LogAsync(AuditEntry{
		Caller:       domain.Caller{UserID: user.ID, Role: user.Role, IPAddress: ip},
		Action:       domain.ActionLogin,
		ResourceType: "session",
	})
	return user, issued, nil
}

func (s *AuthService) Logout(ctx context.Context, caller domain.Caller) error {
	if caller.SessionID == "" {
		return ErrUnauthenticated
	}
	if err := s.sessions.End(ctx, caller.SessionID); err != nil {
		return err
	}
	s.audit.LogAsync(AuditEntry{Caller: caller, Action: domain.ActionLogout, ResourceType: "session"})
	return nil
}

func (s *AuthService) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password, displayName string) error {
	var fields []string
	if err := validate.Var(email, "required,email"); err != nil {
		fields = append(fields, "email: must be a valid email address")
	}
	if len(password) < minPasswordLength {
		fields = append(fields, fmt.Sprintf("password: must be at least %d characters", minPasswordLength))
	}
	if displayName == "" {
		fields = append(fields, "displayName: is required")
	}
	if len(fields) > 0 {
		return invalid(fields...)
	}
	return nil
}
