package operator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service manages operator lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new operator service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new operator bound to a company and stores a hashed password.
func (s *Service) Register(ctx context.Context, creds Credentials) (Operator, error) {
	if creds.Email == "" {
		return Operator{}, errors.New("email is required")
	}
	if len(creds.Password) < 8 {
		return Operator{}, errors.New("password must be at least 8 characters")
	}
	if creds.Company == "" {
		return Operator{}, errors.New("company is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return Operator{}, err
	}

	op := Operator{
		ID:           uuid.New().String(),
		Email:        creds.Email,
		Company:      creds.Company,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, op); err != nil {
		return Operator{}, err
	}

	return op, nil
}

// Authenticate verifies credentials.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Operator, error) {
	op, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		return Operator{}, err
	}

	if err := bcrypt.CompareHashAndPassword(op.PasswordHash, []byte(creds.Password)); err != nil {
		return Operator{}, errors.New("invalid password")
	}

	return op, nil
}
