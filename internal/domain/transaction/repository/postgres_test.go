package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresTransactionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewWithQuerier(mock), mock
}

func sampleTx() *Transaction {
	return &Transaction{
		Date:        time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		Description: "coffee",
		Amount:      decimal.RequireFromString("100.50"),
		Currency:    "USD",
		AmountINR:   decimal.RequireFromString("8040.00"),
	}
}

func uniqueViolationErr() *pgconn.PgError {
	return &pgconn.PgError{Code: "23505", ConstraintName: "unique_transaction_not_deleted"}
}

func TestInsert(t *testing.T) {
	t.Run("fills id and timestamps", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		tx := sampleTx()
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(tx.Date, tx.Description, tx.Amount, tx.Currency, tx.AmountINR).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))

		require.NoError(t, repo.Insert(context.Background(), tx))
		assert.Equal(t, int64(7), tx.ID)
		assert.Equal(t, now, tx.CreatedAt)
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		tx := sampleTx()

		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(tx.Date, tx.Description, tx.Amount, tx.Currency, tx.AmountINR).
			WillReturnError(uniqueViolationErr())

		assert.ErrorIs(t, repo.Insert(context.Background(), tx), ErrDuplicate)
	})
}

func TestBulkInsert(t *testing.T) {
	t.Run("empty batch skips the query", func(t *testing.T) {
		repo, _ := newMockRepo(t)
		n, err := repo.BulkInsert(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("returns inserted count", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		txs := []*Transaction{sampleTx(), sampleTx()}
		txs[1].Description = "tea"
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(1), now, now).
				AddRow(int64(2), now, now))

		n, err := repo.BulkInsert(context.Background(), txs)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, int64(1), txs[0].ID)
		assert.Equal(t, int64(2), txs[1].ID)
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO transactions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(uniqueViolationErr())

		_, err := repo.BulkInsert(context.Background(), []*Transaction{sampleTx()})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		tx := sampleTx()
		tx.ID = 42

		mock.ExpectQuery(`UPDATE transactions`).
			WithArgs(tx.ID, tx.Date, tx.Description, tx.Amount, tx.Currency, tx.AmountINR, tx.IsDeleted).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}))

		assert.ErrorIs(t, repo.Update(context.Background(), tx), ErrNotFound)
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		tx := sampleTx()
		tx.ID = 42

		mock.ExpectQuery(`UPDATE transactions`).
			WithArgs(tx.ID, tx.Date, tx.Description, tx.Amount, tx.Currency, tx.AmountINR, tx.IsDeleted).
			WillReturnError(uniqueViolationErr())

		assert.ErrorIs(t, repo.Update(context.Background(), tx), ErrDuplicate)
	})

	t.Run("refreshes updated_at", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		tx := sampleTx()
		tx.ID = 42
		later := time.Now().Add(time.Minute)

		mock.ExpectQuery(`UPDATE transactions`).
			WithArgs(tx.ID, tx.Date, tx.Description, tx.Amount, tx.Currency, tx.AmountINR, tx.IsDeleted).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(later))

		require.NoError(t, repo.Update(context.Background(), tx))
		assert.Equal(t, later, tx.UpdatedAt)
	})
}

func TestFindActiveByID(t *testing.T) {
	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`FROM transactions`).
			WithArgs(int64(9)).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "date", "description", "amount", "currency",
				"amount_inr", "created_at", "updated_at", "is_deleted",
			}))

		_, err := repo.FindActiveByID(context.Background(), 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("scans the full row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()
		date := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`FROM transactions`).
			WithArgs(int64(9)).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "date", "description", "amount", "currency",
				"amount_inr", "created_at", "updated_at", "is_deleted",
			}).AddRow(
				int64(9), date, "coffee",
				decimal.RequireFromString("100.50"), "USD",
				decimal.RequireFromString("8040.00"), now, now, false,
			))

		tx, err := repo.FindActiveByID(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, "coffee", tx.Description)
		assert.Equal(t, "100.50", tx.Amount.StringFixed(2))
		assert.False(t, tx.IsDeleted)
	})
}

func TestFindActiveByPairs(t *testing.T) {
	t.Run("empty input skips the query", func(t *testing.T) {
		repo, _ := newMockRepo(t)
		matches, err := repo.FindActiveByPairs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("passes date and description arrays", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		date := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
		pairs := []DateDescription{
			{Date: date, Description: "coffee"},
			{Date: date, Description: "tea"},
		}

		mock.ExpectQuery(`JOIN unnest`).
			WithArgs([]time.Time{date, date}, []string{"coffee", "tea"}).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "date", "description", "amount", "currency",
				"amount_inr", "created_at", "updated_at", "is_deleted",
			}).AddRow(
				int64(3), date, "tea",
				decimal.RequireFromString("10.00"), "INR",
				decimal.RequireFromString("10.00"), time.Now(), time.Now(), false,
			))

		matches, err := repo.FindActiveByPairs(context.Background(), pairs)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "tea", matches[0].Description)
	})
}

func TestList(t *testing.T) {
	t.Run("nil filter lists everything active", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`FROM transactions`).
			WithArgs((*time.Time)(nil), (*time.Time)(nil), 10, 0).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "date", "description", "amount", "currency",
				"amount_inr", "created_at", "updated_at", "is_deleted",
			}))

		txs, err := repo.List(context.Background(), ListParams{Sort: SortDesc, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("range filter is forwarded", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`FROM transactions`).
			WithArgs(&start, &end, 20, 40).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "date", "description", "amount", "currency",
				"amount_inr", "created_at", "updated_at", "is_deleted",
			}))

		_, err := repo.List(context.Background(), ListParams{
			Filter: ListFilter{StartDate: &start, EndDate: &end},
			Sort:   SortAsc,
			Limit:  20,
			Offset: 40,
		})
		require.NoError(t, err)
	})
}

func TestCountActive(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs((*time.Time)(nil), (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountActive(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestDeleteAll(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM transactions`).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	assert.NoError(t, repo.DeleteAll(context.Background()))
}
