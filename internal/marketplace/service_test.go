package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/notification"
)

const (
	testAdmin  = "treasury:admin"
	testEscrow = "escrow:marketplace"
)

type testNotifier struct {
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	return nil
}

func newTestService(t *testing.T) (*Service, ledger.Ledger, *testNotifier) {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewInMemory(testAdmin)
	for _, code := range []string{"wallet:seller", "wallet:buyer"} {
		if err := led.EnsureAccount(ctx, code); err != nil {
			t.Fatalf("ensure account %s: %v", code, err)
		}
	}
	ledger.SeedBalance(led, "wallet:seller", 1_000)

	notifier := &testNotifier{}
	svc, err := NewService(ctx, led, NewMemoryRepository(), testEscrow, notifier)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, led, notifier
}

func TestEscrowRoundTrip(t *testing.T) {
	svc, led, notifier := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, CreateInput{
		Seller:           "wallet:seller",
		Amount:           100,
		PricePerToken:    50,
		PaymentReference: "qr://x",
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if listing.ID != 1 || !listing.Active || listing.IsPaid {
		t.Fatalf("unexpected listing state: %+v", listing)
	}

	sellerBalance, _ := led.Balance(ctx, "wallet:seller")
	escrowBalance, _ := led.Balance(ctx, testEscrow)
	if sellerBalance != 900 || escrowBalance != 100 {
		t.Fatalf("lock failed: seller=%d escrow=%d", sellerBalance, escrowBalance)
	}

	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	// Repeating the acknowledgement is a no-op, not an error.
	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != nil {
		t.Fatalf("repeat mark paid: %v", err)
	}

	res, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.TransactionID == "" {
		t.Fatal("expected a release transaction reference")
	}

	buyerBalance, _ := led.Balance(ctx, "wallet:buyer")
	escrowBalance, _ = led.Balance(ctx, testEscrow)
	if buyerBalance != 100 || escrowBalance != 0 {
		t.Fatalf("release failed: buyer=%d escrow=%d", buyerBalance, escrowBalance)
	}

	if notifier.last.Kind != notification.KindEscrowRelease {
		t.Fatal("expected escrow release notification")
	}

	// Terminal: nothing more can happen to the listing.
	if _, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer"); err != ErrUnknownListing {
		t.Fatalf("expected unknown listing after release, got %v", err)
	}
	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != ErrUnknownListing {
		t.Fatalf("expected unknown listing after release, got %v", err)
	}
}

func TestCreateListingInsufficientBalance(t *testing.T) {
	svc, led, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateListing(ctx, CreateInput{
		Seller:        "wallet:seller",
		Amount:        5_000,
		PricePerToken: 50,
	}); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	escrowBalance, _ := led.Balance(ctx, testEscrow)
	if escrowBalance != 0 {
		t.Fatalf("failed listing must not lock funds, escrow=%d", escrowBalance)
	}
}

func TestMarkPaidSelfTrade(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 50})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if err := svc.MarkPaid(ctx, listing.ID, "wallet:seller"); err != ErrSelfTrade {
		t.Fatalf("expected self trade, got %v", err)
	}
}

func TestReleaseAuthorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 50})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	// Unpaid: even the seller cannot release.
	if _, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer"); err != ErrPaymentNotConfirmed {
		t.Fatalf("expected payment not confirmed, got %v", err)
	}

	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	// Paid or not, only the seller may release.
	if _, err := svc.Release(ctx, listing.ID, "wallet:buyer", "wallet:buyer"); err != ErrUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCancelRefundsSeller(t *testing.T) {
	svc, led, _ := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 50})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if err := svc.Cancel(ctx, listing.ID, "wallet:buyer"); err != ErrUnauthorized {
		t.Fatalf("expected unauthorized cancel, got %v", err)
	}

	if err := svc.Cancel(ctx, listing.ID, "wallet:seller"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sellerBalance, _ := led.Balance(ctx, "wallet:seller")
	escrowBalance, _ := led.Balance(ctx, testEscrow)
	if sellerBalance != 1_000 || escrowBalance != 0 {
		t.Fatalf("refund failed: seller=%d escrow=%d", sellerBalance, escrowBalance)
	}
}

func TestCancelRejectedOncePaid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	listing, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 50})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := svc.Cancel(ctx, listing.ID, "wallet:seller"); err != ErrAlreadyPaid {
		t.Fatalf("expected already paid, got %v", err)
	}
}

func TestEscrowCustodyInvariant(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 10}); err != nil {
			t.Fatalf("create listing %d: %v", i, err)
		}
	}
	if err := svc.Cancel(ctx, 2, "wallet:seller"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	listings, err := svc.Listings(ctx)
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	var locked int64
	for _, listing := range listings {
		locked += listing.Amount
	}

	escrowBalance, err := svc.EscrowBalance(ctx)
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if locked != escrowBalance {
		t.Fatalf("custody invariant violated: locked=%d escrow=%d", locked, escrowBalance)
	}
	if len(listings) != 2 || listings[0].ID != 1 || listings[1].ID != 3 {
		t.Fatalf("unexpected active listings: %+v", listings)
	}
}

type flakyListingStore struct {
	Repository
	fail bool
}

func (f *flakyListingStore) UpdateTx(ctx context.Context, q ledger.Querier, listing Listing) error {
	if f.fail {
		f.fail = false
		return errors.New("listings store unavailable")
	}
	return f.Repository.UpdateTx(ctx, q, listing)
}

func TestReleaseRecordFailureKeepsCustody(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory(testAdmin)
	for _, code := range []string{"wallet:seller", "wallet:buyer"} {
		if err := led.EnsureAccount(ctx, code); err != nil {
			t.Fatalf("ensure account %s: %v", code, err)
		}
	}
	ledger.SeedBalance(led, "wallet:seller", 1_000)

	store := &flakyListingStore{Repository: NewMemoryRepository()}
	svc, err := NewService(ctx, led, store, testEscrow, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	listing, err := svc.CreateListing(ctx, CreateInput{Seller: "wallet:seller", Amount: 100, PricePerToken: 50})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if err := svc.MarkPaid(ctx, listing.ID, "wallet:buyer"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	store.fail = true
	if _, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer"); err == nil {
		t.Fatal("expected release to fail when the listing record cannot be written")
	}

	// The transfer rolled back with the failed record: funds stay in custody
	// and the listing stays open, so the custody invariant holds.
	escrowBalance, _ := led.Balance(ctx, testEscrow)
	buyerBalance, _ := led.Balance(ctx, "wallet:buyer")
	if escrowBalance != 100 || buyerBalance != 0 {
		t.Fatalf("failed release must not move funds: escrow=%d buyer=%d", escrowBalance, buyerBalance)
	}
	listings, _ := svc.Listings(ctx)
	if len(listings) != 1 || !listings[0].Active {
		t.Fatalf("listing must stay active after failed release: %+v", listings)
	}

	// Retry pays out exactly once.
	if _, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer"); err != nil {
		t.Fatalf("retry release: %v", err)
	}
	escrowBalance, _ = led.Balance(ctx, testEscrow)
	buyerBalance, _ = led.Balance(ctx, "wallet:buyer")
	if escrowBalance != 0 || buyerBalance != 100 {
		t.Fatalf("retry must pay out once: escrow=%d buyer=%d", escrowBalance, buyerBalance)
	}
	if _, err := svc.Release(ctx, listing.ID, "wallet:seller", "wallet:buyer"); err != ErrUnknownListing {
		t.Fatalf("expected unknown listing after release, got %v", err)
	}
}
