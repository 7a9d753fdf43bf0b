package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carboncred/carboncred/internal/ledger"
)

var (
	// ErrDuplicateCompany indicates the company name is already registered.
	ErrDuplicateCompany = errors.New("company already registered")
	// ErrUnknownCompany indicates no company exists under the given name.
	ErrUnknownCompany = errors.New("company not found")
	// ErrAlreadyMinted indicates the one-shot initial allowance mint already ran.
	ErrAlreadyMinted = errors.New("initial allowance already minted")
)

// Repository persists company records.
type Repository interface {
	Create(ctx context.Context, company Company) error
	GetByName(ctx context.Context, name string) (Company, error)
	Update(ctx context.Context, company Company) error
	// UpdateTx is Update executed through q so the write commits atomically
	// with a ledger posting. A nil q falls back to the repository's own store.
	UpdateTx(ctx context.Context, q ledger.Querier, company Company) error
	// List returns all companies in registration order.
	List(ctx context.Context) ([]Company, error)
}

// PostgresRepository stores companies in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a company record.
func (r *PostgresRepository) Create(ctx context.Context, company Company) error {
	companyID, err := uuid.Parse(company.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO companies (id, name, wallet, initial_allowance, last_verified_consumption, status, settlement_tx, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		companyID, company.Name, company.Wallet, company.InitialAllowance,
		company.LastVerifiedConsumption, string(company.Status), company.SettlementTx, company.CreatedAt.UTC())
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateCompany
	}
	return err
}

// GetByName fetches a company by its unique name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (Company, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, wallet, initial_allowance, last_verified_consumption, status, settlement_tx, created_at
        FROM companies WHERE name = $1`, name)
	company, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrUnknownCompany
	}
	return company, err
}

// Update rewrites the mutable company fields.
func (r *PostgresRepository) Update(ctx context.Context, company Company) error {
	return r.UpdateTx(ctx, r.db, company)
}

// UpdateTx rewrites the mutable company fields through q, typically a ledger
// posting transaction.
func (r *PostgresRepository) UpdateTx(ctx context.Context, q ledger.Querier, company Company) error {
	if q == nil {
		q = r.db
	}
	cmd, err := q.Exec(ctx, `UPDATE companies
        SET wallet = $1, initial_allowance = $2, last_verified_consumption = $3, status = $4, settlement_tx = $5
        WHERE name = $6`,
		company.Wallet, company.InitialAllowance, company.LastVerifiedConsumption,
		string(company.Status), company.SettlementTx, company.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownCompany
	}
	return nil
}

// List returns companies ordered by registration time.
func (r *PostgresRepository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, wallet, initial_allowance, last_verified_consumption, status, settlement_tx, created_at
        FROM companies ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

func scanCompany(row pgx.Row) (Company, error) {
	var (
		c         Company
		id        uuid.UUID
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&id, &c.Name, &c.Wallet, &c.InitialAllowance, &c.LastVerifiedConsumption, &status, &c.SettlementTx, &createdAt); err != nil {
		return Company{}, err
	}
	c.ID = id.String()
	c.Status = Status(status)
	c.CreatedAt = createdAt.UTC()
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
