package service

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"go.uber.org/zap"
)

// SeedPassword is shared by every demo account.
const SeedPassword = "123456"

type seedAccount struct {
	email string
	name  string
	role  domain.Role
}

var seedAccounts = []seedAccount{
	{"admin@test.com", "Administrador", domain.RoleAdmin},
	{"prof@test.com", "Dr. Profesional", domain.RoleDentist},
	{"paciente@test.com", "Paciente Demo", domain.RolePatient},
}

type Seeder struct {
	users    UserRepository
	patients patient.Repository
	tx       Transactor
	log      *zap.Logger
}

func NewSeeder(users UserRepository, patients patient.Repository, tx Transactor, log *zap.Logger) *Seeder {
	return &Seeder{users: users, patients: patients, tx: tx, log: log}
}

// Seed creates the demo accounts that do not exist yet. Running it twice is harmless.
func (s *Seeder) Seed(ctx context.Context) (created int, err error) {
	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return 0, err
	}

	for _, acc := range seedAccounts {
		_, err := s.users.GetByEmail(ctx, acc.email)
		if err == nil {
			s.log.Debug("seed account exists", zap.String("email", acc.email))
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return created, err
		}

		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			u := &domain.User{Email: acc.email, PasswordHash: hash, DisplayName: acc.name, Role: acc.role}
			if err := s.users.Create(ctx, u); err != nil {
				return err
			}
			if acc.role != domain.RolePatient {
				return nil
			}
			return s.patients.Create(ctx, &patient.Patient{
				UserID:                u.ID,
				Address:               "Calle Falsa 123",
				Phone:                 "555-0100",
				BirthDate:             time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC),
				EmergencyContactName:  "Contacto Demo",
				EmergencyContactPhone: "555-0199",
			})
		})
		if err != nil {
			return created, err
		}
		created++
		s.log.Info("seeded account", zap.String("email", acc.email), zap.String("role", string(acc.role)))
	}
	return created, nil
}
