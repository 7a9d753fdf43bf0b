package operator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicateOperator indicates the email is already taken.
	ErrDuplicateOperator = errors.New("operator already exists")
	// ErrUnknownOperator indicates no operator matches the lookup.
	ErrUnknownOperator = errors.New("operator not found")
)

// Repository persists operators.
type Repository interface {
	Create(ctx context.Context, op Operator) error
	FindByEmail(ctx context.Context, email string) (Operator, error)
	FindByID(ctx context.Context, id string) (Operator, error)
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed operator repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new operator.
func (r *PostgresRepository) Create(ctx context.Context, op Operator) error {
	opID, err := uuid.Parse(op.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO operators (id, email, company, password_hash, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		opID, op.Email, op.Company, op.PasswordHash, op.TokenVersion, op.CreatedAt.UTC())
	return err
}

// FindByEmail fetches an operator by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Operator, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, company, password_hash, token_version, created_at
        FROM operators WHERE email = $1`, email)
	return scanOperator(row)
}

// FindByID fetches an operator by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Operator, error) {
	opID, err := uuid.Parse(id)
	if err != nil {
		return Operator{}, ErrUnknownOperator
	}
	row := r.db.QueryRow(ctx, `SELECT id, email, company, password_hash, token_version, created_at
        FROM operators WHERE id = $1`, opID)
	return scanOperator(row)
}

// UpdateTokenVersion bumps the operator's token version, invalidating old tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	opID, err := uuid.Parse(id)
	if err != nil {
		return ErrUnknownOperator
	}
	cmd, err := r.db.Exec(ctx, `UPDATE operators SET token_version = $1 WHERE id = $2`, version, opID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownOperator
	}
	return nil
}

func scanOperator(row pgx.Row) (Operator, error) {
	var (
		op        Operator
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &op.Email, &op.Company, &op.PasswordHash, &op.TokenVersion, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, ErrUnknownOperator
		}
		return Operator{}, err
	}
	op.ID = id.String()
	op.CreatedAt = createdAt.UTC()
	return op, nil
}
