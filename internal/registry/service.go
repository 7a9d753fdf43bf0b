package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carboncred/carboncred/internal/ledger"
)

// Service exposes company lifecycle operations backed by the token ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	admin  string
}

// NewService builds a registry service. The admin account is the privileged
// minter configured at startup.
func NewService(repo Repository, ledgerBackend ledger.Ledger, adminAccount string) *Service {
	return &Service{repo: repo, ledger: ledgerBackend, admin: adminAccount}
}

// RegisterInput captures data required to register a company.
type RegisterInput struct {
	Name   string
	Wallet string
}

// Register creates a company in status registered with a zeroed allowance and
// provisions its wallet account on the ledger. Names are unique and
// case-sensitive as supplied.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Company, error) {
	if input.Name == "" {
		return Company{}, fmt.Errorf("company name is required")
	}
	if input.Wallet == "" {
		return Company{}, fmt.Errorf("wallet account is required")
	}

	if _, err := s.repo.GetByName(ctx, input.Name); err == nil {
		return Company{}, ErrDuplicateCompany
	}

	if err := s.ledger.EnsureAccount(ctx, input.Wallet); err != nil {
		return Company{}, err
	}

	company := Company{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Wallet:    input.Wallet,
		Status:    StatusRegistered,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, company); err != nil {
		return Company{}, err
	}

	return company, nil
}

// MintOutcome reports the phase-1 allowance mint.
type MintOutcome struct {
	Company       Company
	TransactionID string
}

// RecordInitialAllowance mints the declared baseline tonnage to the company
// wallet and activates the company. It is one-shot: any call after the first
// successful mint fails with ErrAlreadyMinted.
func (s *Service) RecordInitialAllowance(ctx context.Context, name string, tons int64) (MintOutcome, error) {
	company, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return MintOutcome{}, err
	}
	if company.Status != StatusRegistered {
		return MintOutcome{}, ErrAlreadyMinted
	}

	// Activation commits with the mint posting; a mint that left the company
	// in status registered would open the door to a second mint.
	res, err := s.ledger.Mint(ctx, s.admin, company.Wallet, tons, func(ctx context.Context, q ledger.Querier, _ ledger.TransactionResult) error {
		company.InitialAllowance = tons
		company.Status = StatusActive
		return s.repo.UpdateTx(ctx, q, company)
	})
	if err != nil {
		return MintOutcome{}, err
	}

	return MintOutcome{Company: company, TransactionID: res.TransactionID}, nil
}

// Lookup fetches a company record by name.
func (s *Service) Lookup(ctx context.Context, name string) (Company, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns all companies in registration order, for the leaderboard view.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	return s.repo.List(ctx)
}

// Balance returns the live ledger balance of the company wallet.
func (s *Service) Balance(ctx context.Context, name string) (int64, error) {
	company, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, company.Wallet)
}
