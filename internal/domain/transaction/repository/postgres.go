package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised by the partial unique index on
// active (date, description) pairs.
const uniqueViolation = "23505"

// Querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresTransactionRepository implements TransactionRepository on pgx.
type PostgresTransactionRepository struct {
	db Querier
}

var _ TransactionRepository = (*PostgresTransactionRepository)(nil)

// NewPostgresTransactionRepository creates a repository over a pgx pool.
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: pool}
}

// NewWithQuerier creates a repository over any Querier. Used by tests.
func NewWithQuerier(db Querier) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, date, description, amount, currency, amount_inr, created_at, updated_at, is_deleted`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	tx := &Transaction{}
	err := row.Scan(
		&tx.ID,
		&tx.Date,
		&tx.Description,
		&tx.Amount,
		&tx.Currency,
		&tx.AmountINR,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Insert persists a single transaction
func (r *PostgresTransactionRepository) Insert(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (date, description, amount, currency, amount_inr)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		tx.Date,
		tx.Description,
		tx.Amount,
		tx.Currency,
		tx.AmountINR,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// BulkInsert persists a batch of transactions in one statement
func (r *PostgresTransactionRepository) BulkInsert(ctx context.Context, txs []*Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dates := make([]time.Time, len(txs))
	descriptions := make([]string, len(txs))
	amounts := make([]string, len(txs))
	currencies := make([]string, len(txs))
	amountsInr := make([]string, len(txs))
	for i, tx := range txs {
		dates[i] = tx.Date
		descriptions[i] = tx.Description
		amounts[i] = tx.Amount.StringFixed(2)
		currencies[i] = tx.Currency
		amountsInr[i] = tx.AmountINR.StringFixed(2)
	}

	query := `
		INSERT INTO transactions (date, description, amount, currency, amount_inr)
		SELECT * FROM unnest(
			$1::date[], $2::text[], $3::numeric[], $4::text[], $5::numeric[]
		)
		RETURNING id, created_at, updated_at`

	rows, err := r.db.Query(ctx, query, dates, descriptions, amounts, currencies, amountsInr)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert transactions: %w", err)
	}
	defer rows.Close()

	inserted := 0
	for rows.Next() {
		if inserted < len(txs) {
			tx := txs[inserted]
			if err := rows.Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
				return inserted, fmt.Errorf("failed to scan inserted transaction: %w", err)
			}
		}
		inserted++
	}
	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return inserted, fmt.Errorf("failed to bulk insert transactions: %w", err)
	}
	return inserted, nil
}

// Update rewrites the mutable fields of a row
func (r *PostgresTransactionRepository) Update(ctx context.Context, tx *Transaction) error {
	query := `
		UPDATE transactions
		SET date = $2, description = $3, amount = $4, currency = $5,
		    amount_inr = $6, is_deleted = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.Date,
		tx.Description,
		tx.Amount,
		tx.Currency,
		tx.AmountINR,
		tx.IsDeleted,
	).Scan(&tx.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// FindActiveByID returns the active row with the given id
func (r *PostgresTransactionRepository) FindActiveByID(ctx context.Context, id int64) (*Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1 AND is_deleted = false`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// FindOneActive returns the active row with the given (date, description)
func (r *PostgresTransactionRepository) FindOneActive(ctx context.Context, date time.Time, description string) (*Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE date = $1 AND description = $2 AND is_deleted = false`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, date, description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return tx, nil
}

// FindActiveByPairs matches all candidate pairs against active rows in a
// single round trip.
func (r *PostgresTransactionRepository) FindActiveByPairs(ctx context.Context, pairs []DateDescription) ([]*Transaction, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, len(pairs))
	descriptions := make([]string, len(pairs))
	for i, p := range pairs {
		dates[i] = p.Date
		descriptions[i] = p.Description
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN unnest($1::date[], $2::text[]) AS p(date, description)
		  ON t.date = p.date AND t.description = p.description
		WHERE t.is_deleted = false
		ORDER BY t.id`

	rows, err := r.db.Query(ctx, query, dates, descriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate pairs: %w", err)
	}
	defer rows.Close()

	var matches []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		matches = append(matches, tx)
	}
	return matches, rows.Err()
}

// List returns a page of active rows ordered by date
func (r *PostgresTransactionRepository) List(ctx context.Context, params ListParams) ([]*Transaction, error) {
	order := "DESC"
	if params.Sort == SortAsc {
		order = "ASC"
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE is_deleted = false
		  AND ($1::date IS NULL OR date >= $1)
		  AND ($2::date IS NULL OR date <= $2)
		ORDER BY date ` + order + `, id ` + order + `
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query,
		params.Filter.StartDate,
		params.Filter.EndDate,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CountActive counts active rows matching the filter
func (r *PostgresTransactionRepository) CountActive(ctx context.Context, filter ListFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE is_deleted = false
		  AND ($1::date IS NULL OR date >= $1)
		  AND ($2::date IS NULL OR date <= $2)`

	var count int
	err := r.db.QueryRow(ctx, query, filter.StartDate, filter.EndDate).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteAll physically removes every row
func (r *PostgresTransactionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
