package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	admin    string
	balances map[string]int64
	minted   int64
	burned   int64
}

// NewInMemory creates a concurrency-safe in-memory ledger. The admin account
// is the only identity allowed to mint.
func NewInMemory(adminAccount string) Ledger {
	return &inMemoryLedger{
		admin:    adminAccount,
		balances: map[string]int64{adminAccount: 0},
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrUnknownAccount
	}
	return balance, nil
}

func (l *inMemoryLedger) TotalSupply(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted - l.burned, nil
}

func (l *inMemoryLedger) Mint(ctx context.Context, caller, to string, amount int64, hooks ...TxHook) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.admin {
		return TransactionResult{}, ErrUnauthorized
	}
	toBalance, ok := l.balances[to]
	if !ok {
		return TransactionResult{}, ErrUnknownAccount
	}

	toBalance += amount
	l.balances[to] = toBalance
	l.minted += amount

	res := TransactionResult{
		TransactionID: "mint:" + uuid.NewString(),
		ToBalance:     toBalance,
	}
	if err := l.runHooks(ctx, hooks, res); err != nil {
		l.balances[to] -= amount
		l.minted -= amount
		return TransactionResult{}, err
	}
	return res, nil
}

func (l *inMemoryLedger) Transfer(ctx context.Context, from, to string, amount int64, hooks ...TxHook) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, ok := l.balances[from]
	if !ok {
		return TransactionResult{}, ErrUnknownAccount
	}
	toBalance, ok := l.balances[to]
	if !ok {
		return TransactionResult{}, ErrUnknownAccount
	}

	if fromBalance < amount {
		return TransactionResult{}, ErrInsufficientBalance
	}

	fromBalance -= amount
	toBalance += amount

	l.balances[from] = fromBalance
	l.balances[to] = toBalance

	res := TransactionResult{
		TransactionID: "transfer:" + uuid.NewString(),
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}
	if err := l.runHooks(ctx, hooks, res); err != nil {
		l.balances[from] += amount
		l.balances[to] -= amount
		return TransactionResult{}, err
	}
	return res, nil
}

func (l *inMemoryLedger) Burn(ctx context.Context, from string, amount int64, hooks ...TxHook) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, ok := l.balances[from]
	if !ok {
		return TransactionResult{}, ErrUnknownAccount
	}
	if fromBalance < amount {
		return TransactionResult{}, ErrInsufficientBalance
	}

	fromBalance -= amount
	l.balances[from] = fromBalance
	l.burned += amount

	res := TransactionResult{
		TransactionID: "burn:" + uuid.NewString(),
		FromBalance:   fromBalance,
	}
	if err := l.runHooks(ctx, hooks, res); err != nil {
		l.balances[from] += amount
		l.burned -= amount
		return TransactionResult{}, err
	}
	return res, nil
}

// runHooks executes hooks while holding the ledger lock; callers revert the
// posting on error.
func (l *inMemoryLedger) runHooks(ctx context.Context, hooks []TxHook, res TransactionResult) error {
	for _, hook := range hooks {
		if err := hook(ctx, nil, res); err != nil {
			return err
		}
	}
	return nil
}
