package marketplace

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carboncred/carboncred/internal/ledger"
)

var (
	// ErrUnknownListing indicates the listing does not exist or is no longer active.
	ErrUnknownListing = errors.New("listing not found")
	// ErrUnauthorized indicates the caller is not the listing's seller.
	ErrUnauthorized = errors.New("caller is not the seller")
	// ErrSelfTrade indicates a seller tried to confirm their own payment.
	ErrSelfTrade = errors.New("seller cannot confirm own payment")
	// ErrPaymentNotConfirmed indicates release was attempted before the buyer
	// acknowledged payment.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	// ErrAlreadyPaid indicates cancellation was attempted after the buyer
	// confirmed payment.
	ErrAlreadyPaid = errors.New("payment already confirmed")
)

// Repository persists escrow listings. Ids are monotonic and never reused.
type Repository interface {
	Create(ctx context.Context, listing Listing) (int64, error)
	Get(ctx context.Context, id int64) (Listing, error)
	Update(ctx context.Context, listing Listing) error
	// UpdateTx is Update executed through q so the write commits atomically
	// with a ledger posting. A nil q falls back to the repository's own store.
	UpdateTx(ctx context.Context, q ledger.Querier, listing Listing) error
	// ListActive returns active listings ordered by id.
	ListActive(ctx context.Context) ([]Listing, error)
}

// PostgresRepository stores listings in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a listing and returns its assigned id.
func (r *PostgresRepository) Create(ctx context.Context, listing Listing) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO listings (seller, amount, price_per_token, payment_reference, is_paid, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		listing.Seller, listing.Amount, listing.PricePerToken, listing.PaymentReference,
		listing.IsPaid, listing.Active, listing.CreatedAt.UTC()).Scan(&id)
	return id, err
}

// Get fetches a listing by id, active or not.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Listing, error) {
	row := r.db.QueryRow(ctx, `SELECT id, seller, amount, price_per_token, payment_reference, is_paid, active, created_at
        FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrUnknownListing
	}
	return listing, err
}

// Update rewrites the mutable listing flags.
func (r *PostgresRepository) Update(ctx context.Context, listing Listing) error {
	return r.UpdateTx(ctx, r.db, listing)
}

// UpdateTx rewrites the mutable listing flags through q, typically a ledger
// posting transaction.
func (r *PostgresRepository) UpdateTx(ctx context.Context, q ledger.Querier, listing Listing) error {
	if q == nil {
		q = r.db
	}
	cmd, err := q.Exec(ctx, `UPDATE listings SET is_paid = $1, active = $2 WHERE id = $3`,
		listing.IsPaid, listing.Active, listing.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownListing
	}
	return nil
}

// ListActive returns open listings in id order.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Listing, error) {
	rows, err := r.db.Query(ctx, `SELECT id, seller, amount, price_per_token, payment_reference, is_paid, active, created_at
        FROM listings WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func scanListing(row pgx.Row) (Listing, error) {
	var (
		l         Listing
		createdAt time.Time
	)
	if err := row.Scan(&l.ID, &l.Seller, &l.Amount, &l.PricePerToken, &l.PaymentReference, &l.IsPaid, &l.Active, &createdAt); err != nil {
		return Listing{}, err
	}
	l.CreatedAt = createdAt.UTC()
	return l, nil
}
