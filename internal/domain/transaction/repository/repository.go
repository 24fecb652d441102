// Package repository defines the transaction storage contract and its
// PostgreSQL implementation.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no active transaction matches the lookup.
var ErrNotFound = errors.New("transaction not found")

// ErrDuplicate is returned when an insert or update collides with the
// partial unique index on active (date, description) pairs.
var ErrDuplicate = errors.New("duplicate transaction")

// Transaction is the persisted entity. Date carries no time of day; it is
// the economic event date, not the insert time.
type Transaction struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"Date"`
	Description string          `json:"Description"`
	Amount      decimal.Decimal `json:"Amount"`
	Currency    string          `json:"Currency"`
	AmountINR   decimal.Decimal `json:"AmountINR"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	IsDeleted   bool            `json:"isDeleted"`
}

// DateDescription is the composite key the uniqueness invariant ranges over.
type DateDescription struct {
	Date        time.Time
	Description string
}

// SortOrder for listing by date.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListFilter narrows List and CountActive to a date window.
// StartDate/EndDate are inclusive; nil means unbounded.
type ListFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// ListParams adds paging and ordering on top of a filter.
type ListParams struct {
	Filter ListFilter
	Sort   SortOrder
	Limit  int
	Offset int
}

// TransactionRepository is the storage collaborator consumed by the
// transaction and import services.
type TransactionRepository interface {
	// Insert persists a single transaction and fills ID and timestamps.
	Insert(ctx context.Context, tx *Transaction) error
	// BulkInsert persists a batch in one statement and returns the number
	// of rows written.
	BulkInsert(ctx context.Context, txs []*Transaction) (int, error)
	// Update rewrites the mutable fields of an existing row.
	Update(ctx context.Context, tx *Transaction) error
	// FindActiveByID returns the active row with the given id.
	FindActiveByID(ctx context.Context, id int64) (*Transaction, error)
	// FindOneActive returns the active row with the given (date, description).
	FindOneActive(ctx context.Context, date time.Time, description string) (*Transaction, error)
	// FindActiveByPairs returns every active row whose (date, description)
	// matches any of the candidate pairs, in one query.
	FindActiveByPairs(ctx context.Context, pairs []DateDescription) ([]*Transaction, error)
	// List returns a page of active rows.
	List(ctx context.Context, params ListParams) ([]*Transaction, error)
	// CountActive counts active rows matching the filter.
	CountActive(ctx context.Context, filter ListFilter) (int, error)
	// DeleteAll physically removes every row, deleted or not.
	DeleteAll(ctx context.Context) error
}
