package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/notification"
	"github.com/carboncred/carboncred/internal/registry"
)

// ErrNotActive indicates the company is not in a settleable status.
var ErrNotActive = errors.New("company not eligible for settlement")

// OutcomeStatus distinguishes the two terminal settlement results. A deficit
// is a valid business outcome, not an error; callers branch on it to prompt a
// marketplace purchase.
type OutcomeStatus string

const (
	// OutcomeSettled means the required burn committed.
	OutcomeSettled OutcomeStatus = "settled"
	// OutcomeDeficit means the wallet could not cover the required burn.
	OutcomeDeficit OutcomeStatus = "deficit"
)

// Outcome reports the result of a settlement run.
type Outcome struct {
	Status        OutcomeStatus
	RequiredBurn  int64
	Burned        int64
	NetSurplus    int64
	Shortfall     int64
	TransactionID string
}

// Service audits company consumption against its allowance and retires
// credits through the ledger. It is the single place the over-consumption
// penalty is computed; every settlement entry point funnels into Settle. The
// mutex serializes settlements so the status guard, balance read and burn act
// as one step; without it two racing audits both pass the guard and burn
// twice.
type Service struct {
	mu        sync.Mutex
	ledger    ledger.Ledger
	companies registry.Repository
	notifier  notification.Notifier
}

// NewService constructs a settlement service.
func NewService(ledgerBackend ledger.Ledger, companies registry.Repository, notifier notification.Notifier) *Service {
	return &Service{ledger: ledgerBackend, companies: companies, notifier: notifier}
}

// Settle computes the required burn for an audited consumption figure and
// executes it all-or-nothing.
//
// The penalty is half the consumption beyond the allowance, truncated toward
// zero, so the excess portion burns at 1.5x overall. When the wallet cannot
// cover the burn nothing is retired: the company moves to deficit and the
// shortfall is reported so it can buy credits and settle again.
func (s *Service) Settle(ctx context.Context, name string, auditedConsumption int64) (Outcome, error) {
	if auditedConsumption < 0 {
		return Outcome{}, fmt.Errorf("audited consumption must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	company, err := s.companies.GetByName(ctx, name)
	if err != nil {
		return Outcome{}, err
	}

	switch company.Status {
	case registry.StatusActive, registry.StatusPendingSettlement, registry.StatusDeficit:
	default:
		return Outcome{}, ErrNotActive
	}

	excess := auditedConsumption - company.InitialAllowance
	if excess < 0 {
		excess = 0
	}
	penalty := excess / 2 // truncates toward zero on odd excess
	requiredBurn := auditedConsumption + penalty

	// A zero audit figure settles without a posting: nothing to retire.
	if requiredBurn == 0 {
		company.LastVerifiedConsumption = 0
		company.SettlementTx = ""
		company.Status = registry.StatusAudited
		if err := s.companies.Update(ctx, company); err != nil {
			return Outcome{}, err
		}
		outcome := Outcome{Status: OutcomeSettled, NetSurplus: company.InitialAllowance}
		s.notify(ctx, company, fmt.Sprintf("settled: burned 0 CCT, net surplus %d", outcome.NetSurplus))
		return outcome, nil
	}

	balance, err := s.ledger.Balance(ctx, company.Wallet)
	if err != nil {
		return Outcome{}, err
	}

	if balance < requiredBurn {
		company.Status = registry.StatusDeficit
		if err := s.companies.Update(ctx, company); err != nil {
			return Outcome{}, err
		}
		outcome := Outcome{
			Status:       OutcomeDeficit,
			RequiredBurn: requiredBurn,
			Shortfall:    requiredBurn - balance,
		}
		s.notify(ctx, company, fmt.Sprintf("settlement deficit: short %d CCT of %d required", outcome.Shortfall, requiredBurn))
		return outcome, nil
	}

	// Claim the audit first so a failure between the two writes leaves the
	// company re-settleable instead of silently active.
	company.Status = registry.StatusPendingSettlement
	if err := s.companies.Update(ctx, company); err != nil {
		return Outcome{}, err
	}

	// The burn and the company record commit as one step: the hook runs in
	// the same ledger transaction, and the posting rolls back if it fails.
	res, err := s.ledger.Burn(ctx, company.Wallet, requiredBurn, func(ctx context.Context, q ledger.Querier, res ledger.TransactionResult) error {
		company.LastVerifiedConsumption = auditedConsumption
		company.SettlementTx = res.TransactionID
		company.Status = registry.StatusAudited
		return s.companies.UpdateTx(ctx, q, company)
	})
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		Status:        OutcomeSettled,
		RequiredBurn:  requiredBurn,
		Burned:        requiredBurn,
		NetSurplus:    company.InitialAllowance - auditedConsumption,
		TransactionID: res.TransactionID,
	}
	s.notify(ctx, company, fmt.Sprintf("settled: burned %d CCT, net surplus %d", outcome.Burned, outcome.NetSurplus))
	return outcome, nil
}

func (s *Service) notify(ctx context.Context, company registry.Company, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindSettlement,
		Destination: company.Name,
		Body:        body,
	})
}
