package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/notification"
	"github.com/carboncred/carboncred/internal/registry"
)

const testAdmin = "treasury:admin"

type testNotifier struct {
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	return nil
}

func setup(t *testing.T, allowance, walletBalance int64) (*Service, ledger.Ledger, registry.Repository, *testNotifier) {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewInMemory(testAdmin)
	repo := registry.NewMemoryRepository()
	regSvc := registry.NewService(repo, led, testAdmin)

	if _, err := regSvc.Register(ctx, registry.RegisterInput{Name: "Acme", Wallet: "wallet:acme"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := regSvc.RecordInitialAllowance(ctx, "Acme", allowance); err != nil {
		t.Fatalf("record allowance: %v", err)
	}
	if walletBalance != allowance {
		ledger.SeedBalance(led, "wallet:acme", walletBalance)
	}

	notifier := &testNotifier{}
	return NewService(led, repo, notifier), led, repo, notifier
}

func TestSettleDeterministicBurn(t *testing.T) {
	// Allowance 1000, consumption 1100: excess 100, penalty 50, burn 1150.
	svc, led, repo, notifier := setup(t, 1_000, 1_200)
	ctx := context.Background()

	outcome, err := svc.Settle(ctx, "Acme", 1_100)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Status != OutcomeSettled {
		t.Fatalf("expected settled, got %s", outcome.Status)
	}
	if outcome.Burned != 1_150 {
		t.Fatalf("expected burn 1150, got %d", outcome.Burned)
	}
	if outcome.NetSurplus != -100 {
		t.Fatalf("expected net surplus -100, got %d", outcome.NetSurplus)
	}

	balance, _ := led.Balance(ctx, "wallet:acme")
	if balance != 50 {
		t.Fatalf("expected remaining balance 50, got %d", balance)
	}

	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusAudited {
		t.Fatalf("expected status audited, got %s", company.Status)
	}
	if company.LastVerifiedConsumption != 1_100 {
		t.Fatalf("expected verified consumption 1100, got %d", company.LastVerifiedConsumption)
	}
	if company.SettlementTx != outcome.TransactionID || outcome.TransactionID == "" {
		t.Fatalf("settlement tx not recorded: %q vs %q", company.SettlementTx, outcome.TransactionID)
	}
	if notifier.last.Kind != notification.KindSettlement {
		t.Fatal("expected settlement notification")
	}
}

func TestSettleDeficitBurnsNothing(t *testing.T) {
	svc, led, repo, _ := setup(t, 1_000, 1_000)
	ctx := context.Background()

	outcome, err := svc.Settle(ctx, "Acme", 1_100)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Status != OutcomeDeficit {
		t.Fatalf("expected deficit, got %s", outcome.Status)
	}
	if outcome.RequiredBurn != 1_150 || outcome.Shortfall != 150 {
		t.Fatalf("expected required 1150 shortfall 150, got %+v", outcome)
	}

	balance, _ := led.Balance(ctx, "wallet:acme")
	if balance != 1_000 {
		t.Fatalf("deficit must not burn, balance=%d", balance)
	}

	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusDeficit {
		t.Fatalf("expected status deficit, got %s", company.Status)
	}
	if company.LastVerifiedConsumption != 0 {
		t.Fatalf("consumption must stay unverified on deficit, got %d", company.LastVerifiedConsumption)
	}
}

func TestSettleClearsDeficitAfterTopUp(t *testing.T) {
	svc, led, repo, _ := setup(t, 1_000, 1_000)
	ctx := context.Background()

	if outcome, err := svc.Settle(ctx, "Acme", 1_100); err != nil || outcome.Status != OutcomeDeficit {
		t.Fatalf("expected deficit first, got %+v err=%v", outcome, err)
	}

	// Company buys credits (e.g. on the marketplace) and retries.
	ledger.SeedBalance(led, "wallet:acme", 1_150)

	outcome, err := svc.Settle(ctx, "Acme", 1_100)
	if err != nil {
		t.Fatalf("re-settle: %v", err)
	}
	if outcome.Status != OutcomeSettled || outcome.Burned != 1_150 {
		t.Fatalf("expected settled burn 1150, got %+v", outcome)
	}

	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusAudited {
		t.Fatalf("expected audited after clearing debt, got %s", company.Status)
	}
}

func TestSettleOddExcessTruncatesPenalty(t *testing.T) {
	svc, _, _, _ := setup(t, 1_000, 2_000)

	outcome, err := svc.Settle(context.Background(), "Acme", 1_101)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// excess 101 -> penalty 50 (truncated), burn 1151
	if outcome.Burned != 1_151 {
		t.Fatalf("expected burn 1151, got %d", outcome.Burned)
	}
}

func TestSettleUnderConsumptionNoPenalty(t *testing.T) {
	svc, _, _, _ := setup(t, 1_000, 1_000)

	outcome, err := svc.Settle(context.Background(), "Acme", 400)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Burned != 400 || outcome.NetSurplus != 600 {
		t.Fatalf("expected burn 400 surplus 600, got %+v", outcome)
	}
}

func TestSettleStatusGuards(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory(testAdmin)
	repo := registry.NewMemoryRepository()
	regSvc := registry.NewService(repo, led, testAdmin)
	svc := NewService(led, repo, nil)

	if _, err := svc.Settle(ctx, "Ghost", 100); err != registry.ErrUnknownCompany {
		t.Fatalf("expected unknown company, got %v", err)
	}

	// Registered but not minted: not settleable.
	if _, err := regSvc.Register(ctx, registry.RegisterInput{Name: "Acme", Wallet: "wallet:acme"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Settle(ctx, "Acme", 100); err != ErrNotActive {
		t.Fatalf("expected not active, got %v", err)
	}

	// Audited companies are one-shot.
	if _, err := regSvc.RecordInitialAllowance(ctx, "Acme", 1_000); err != nil {
		t.Fatalf("record allowance: %v", err)
	}
	if _, err := svc.Settle(ctx, "Acme", 500); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := svc.Settle(ctx, "Acme", 500); err != ErrNotActive {
		t.Fatalf("expected not active after audit, got %v", err)
	}
}

func TestSettleZeroConsumption(t *testing.T) {
	svc, led, repo, _ := setup(t, 1_000, 1_000)
	ctx := context.Background()

	outcome, err := svc.Settle(ctx, "Acme", 0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Status != OutcomeSettled || outcome.RequiredBurn != 0 || outcome.Burned != 0 {
		t.Fatalf("zero consumption must settle without a burn, got %+v", outcome)
	}
	if outcome.NetSurplus != 1_000 {
		t.Fatalf("expected net surplus 1000, got %d", outcome.NetSurplus)
	}

	balance, _ := led.Balance(ctx, "wallet:acme")
	if balance != 1_000 {
		t.Fatalf("balance must be untouched, got %d", balance)
	}

	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusAudited {
		t.Fatalf("expected status audited, got %s", company.Status)
	}
	if company.LastVerifiedConsumption != 0 || company.SettlementTx != "" {
		t.Fatalf("unexpected settlement record: %+v", company)
	}
}

func TestSettleConcurrentAuditsCommitOnce(t *testing.T) {
	// Allowance 1000, consumption 1100: exactly 1150 may ever be retired,
	// even when two audits race for the same company.
	svc, led, repo, _ := setup(t, 1_000, 2_300)
	ctx := context.Background()

	type result struct {
		outcome Outcome
		err     error
	}
	results := make(chan result, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Settle(ctx, "Acme", 1_100)
			results <- result{outcome: outcome, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var settled, rejected int
	for r := range results {
		switch {
		case r.err == nil && r.outcome.Status == OutcomeSettled:
			settled++
		case errors.Is(r.err, ErrNotActive):
			rejected++
		default:
			t.Fatalf("unexpected result %+v err=%v", r.outcome, r.err)
		}
	}
	if settled != 1 || rejected != 1 {
		t.Fatalf("audit must commit exactly once: settled=%d rejected=%d", settled, rejected)
	}

	balance, _ := led.Balance(ctx, "wallet:acme")
	if balance != 1_150 {
		t.Fatalf("expected one burn of 1150 leaving 1150, got balance %d", balance)
	}
	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusAudited {
		t.Fatalf("expected audited, got %s", company.Status)
	}
}

type flakyCompanyStore struct {
	registry.Repository
	fail bool
}

func (f *flakyCompanyStore) UpdateTx(ctx context.Context, q ledger.Querier, company registry.Company) error {
	if f.fail {
		f.fail = false
		return errors.New("companies store unavailable")
	}
	return f.Repository.UpdateTx(ctx, q, company)
}

func TestSettleRecordFailureRevertsBurn(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory(testAdmin)
	repo := registry.NewMemoryRepository()
	regSvc := registry.NewService(repo, led, testAdmin)

	if _, err := regSvc.Register(ctx, registry.RegisterInput{Name: "Acme", Wallet: "wallet:acme"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := regSvc.RecordInitialAllowance(ctx, "Acme", 1_000); err != nil {
		t.Fatalf("record allowance: %v", err)
	}

	store := &flakyCompanyStore{Repository: repo, fail: true}
	svc := NewService(led, store, nil)

	if _, err := svc.Settle(ctx, "Acme", 400); err == nil {
		t.Fatal("expected settle to fail when the company record cannot be written")
	}

	balance, _ := led.Balance(ctx, "wallet:acme")
	if balance != 1_000 {
		t.Fatalf("burn must roll back with the failed record, balance=%d", balance)
	}
	company, _ := repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusPendingSettlement {
		t.Fatalf("expected pending settlement claim, got %s", company.Status)
	}

	// The claim keeps the company settleable, so a retry commits cleanly.
	outcome, err := svc.Settle(ctx, "Acme", 400)
	if err != nil {
		t.Fatalf("retry settle: %v", err)
	}
	if outcome.Status != OutcomeSettled || outcome.Burned != 400 {
		t.Fatalf("expected settled burn 400, got %+v", outcome)
	}
	company, _ = repo.GetByName(ctx, "Acme")
	if company.Status != registry.StatusAudited {
		t.Fatalf("expected audited after retry, got %s", company.Status)
	}
}
