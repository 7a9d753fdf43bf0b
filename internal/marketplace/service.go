package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/notification"
)

// Service mediates peer-to-peer credit trades through a custodial escrow
// account. Creating a listing locks the tokens on the ledger; they leave
// custody only through Release (seller-authorized, payment-confirmed) or
// Cancel (seller refund while unpaid).
//
// The off-ledger payment itself is outside the trust boundary: MarkPaid
// records the buyer's assertion and nothing more.
type Service struct {
	mu       sync.Mutex
	ledger   ledger.Ledger
	listings Repository
	escrow   string
	notifier notification.Notifier
}

// NewService prepares a marketplace service ensuring the escrow custody
// account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, listings Repository, escrowAccount string, notifier notification.Notifier) (*Service, error) {
	if listings == nil {
		return nil, fmt.Errorf("listing repository is required")
	}
	if escrowAccount == "" {
		return nil, fmt.Errorf("escrow account is required")
	}
	if err := ledgerBackend.EnsureAccount(ctx, escrowAccount); err != nil {
		return nil, err
	}
	return &Service{ledger: ledgerBackend, listings: listings, escrow: escrowAccount, notifier: notifier}, nil
}

// CreateInput captures data required to open a listing.
type CreateInput struct {
	Seller           string
	Amount           int64
	PricePerToken    int64
	PaymentReference string
}

// CreateListing locks the offered tokens in escrow and records the listing.
// Ledger failures (insufficient balance, unknown account) propagate verbatim.
func (s *Service) CreateListing(ctx context.Context, input CreateInput) (Listing, error) {
	if input.Amount <= 0 {
		return Listing{}, ledger.ErrInvalidAmount
	}
	if input.PricePerToken <= 0 {
		return Listing{}, fmt.Errorf("price per token must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ledger.Transfer(ctx, input.Seller, s.escrow, input.Amount); err != nil {
		return Listing{}, err
	}

	listing := Listing{
		Seller:           input.Seller,
		Amount:           input.Amount,
		PricePerToken:    input.PricePerToken,
		PaymentReference: input.PaymentReference,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}

	id, err := s.listings.Create(ctx, listing)
	if err != nil {
		// Undo the lock so no tokens are stranded in custody.
		if _, refundErr := s.ledger.Transfer(ctx, s.escrow, input.Seller, input.Amount); refundErr != nil {
			return Listing{}, fmt.Errorf("record listing: %w (escrow refund also failed: %v)", err, refundErr)
		}
		return Listing{}, err
	}
	listing.ID = id

	return listing, nil
}

// MarkPaid records the buyer-side payment acknowledgement. The seller cannot
// confirm their own payment. Confirming an already-paid listing is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id int64, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return err
	}
	if !listing.Active {
		return ErrUnknownListing
	}
	if caller == listing.Seller {
		return ErrSelfTrade
	}
	if listing.IsPaid {
		return nil
	}

	listing.IsPaid = true
	return s.listings.Update(ctx, listing)
}

// ReleaseResult reports the escrow release posting.
type ReleaseResult struct {
	Listing       Listing
	TransactionID string
}

// Release hands the escrowed tokens to the buyer. It needs both the is-paid
// flag and the seller's authorization, so neither party can move custody
// funds alone.
func (s *Service) Release(ctx context.Context, id int64, caller, buyerAccount string) (ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return ReleaseResult{}, err
	}
	if !listing.Active {
		return ReleaseResult{}, ErrUnknownListing
	}
	if caller != listing.Seller {
		return ReleaseResult{}, ErrUnauthorized
	}
	if !listing.IsPaid {
		return ReleaseResult{}, ErrPaymentNotConfirmed
	}

	if err := s.ledger.EnsureAccount(ctx, buyerAccount); err != nil {
		return ReleaseResult{}, err
	}
	// Deactivation rides in the transfer's transaction so custody funds can
	// never leave escrow while the listing still reads active.
	res, err := s.ledger.Transfer(ctx, s.escrow, buyerAccount, listing.Amount, func(ctx context.Context, q ledger.Querier, _ ledger.TransactionResult) error {
		listing.Active = false
		return s.listings.UpdateTx(ctx, q, listing)
	})
	if err != nil {
		return ReleaseResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindEscrowRelease,
			Destination: buyerAccount,
			Body:        fmt.Sprintf("received %d CCT from listing %d", listing.Amount, listing.ID),
		})
	}

	return ReleaseResult{Listing: listing, TransactionID: res.TransactionID}, nil
}

// Cancel returns the locked tokens to the seller. Only the seller may cancel,
// and only while the buyer has not confirmed payment.
func (s *Service) Cancel(ctx context.Context, id int64, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return err
	}
	if !listing.Active {
		return ErrUnknownListing
	}
	if caller != listing.Seller {
		return ErrUnauthorized
	}
	if listing.IsPaid {
		return ErrAlreadyPaid
	}

	_, err = s.ledger.Transfer(ctx, s.escrow, listing.Seller, listing.Amount, func(ctx context.Context, q ledger.Querier, _ ledger.TransactionResult) error {
		listing.Active = false
		return s.listings.UpdateTx(ctx, q, listing)
	})
	return err
}

// Listings returns the open listings.
func (s *Service) Listings(ctx context.Context) ([]Listing, error) {
	return s.listings.ListActive(ctx)
}

// EscrowBalance reports the custody account balance; with no pending listing
// mutations it equals the sum of active listing amounts.
func (s *Service) EscrowBalance(ctx context.Context) (int64, error) {
	return s.ledger.Balance(ctx, s.escrow)
}
