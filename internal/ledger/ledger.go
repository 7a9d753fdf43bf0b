package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnauthorized occurs when an account other than the configured
	// administrator attempts to mint credits.
	ErrUnauthorized = errors.New("unauthorized minter")

	// ErrInsufficientBalance occurs when the source account lacks the balance
	// to cover a requested transfer or burn.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount indicates a non-positive token amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownAccount indicates the referenced account has never been created.
	ErrUnknownAccount = errors.New("unknown account")
)

// SupplyAccountCode is the contra account balancing mint and burn postings.
// Its balance is the negation of the circulating supply.
const SupplyAccountCode = "supply:cct"

// TransactionResult captures the outcome of a ledger posting. For mints only
// ToBalance is meaningful, for burns only FromBalance.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Querier is the subset of pgx available to transaction hooks. Both pgx.Tx
// and *pgxpool.Pool satisfy it; the in-memory backend passes nil.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxHook runs after a posting is applied but before it becomes visible, so a
// caller can record domain state in the same atomic step as the ledger entry.
// The Postgres backend executes hooks inside the posting's transaction with q
// bound to it; hook writes commit or roll back together with the entries. The
// in-memory backend runs hooks under its lock with a nil q and reverts the
// posting when a hook fails.
type TxHook func(ctx context.Context, q Querier, res TransactionResult) error

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Mint, Transfer and Burn are the only operations that change balances; every
// call either fully commits, hooks included, or leaves all state untouched.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	// TotalSupply reports minted minus burned tokens; at any observation point
	// it equals the sum of all non-supply account balances.
	TotalSupply(ctx context.Context) (int64, error)
	Mint(ctx context.Context, caller, to string, amount int64, hooks ...TxHook) (TransactionResult, error)
	Transfer(ctx context.Context, from, to string, amount int64, hooks ...TxHook) (TransactionResult, error)
	Burn(ctx context.Context, from string, amount int64, hooks ...TxHook) (TransactionResult, error)
}
