package service

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
)

type DentistService struct {
	users UserRepository
}

func NewDentistService(users UserRepository) *DentistService {
	return &DentistService{users: users}
}

// List returns every dentist ordered by display name.
func (s *DentistService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListByRole(ctx, domain.RoleDentist)
}
