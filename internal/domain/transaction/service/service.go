// Package service implements the single-record transaction operations:
// add, update, soft delete, list and the administrative delete-all.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rupeeledger/rupee-ledger/internal/domain/import/normalizer"
	"github.com/rupeeledger/rupee-ledger/internal/domain/transaction/repository"
)

// maxAmount caps single amounts at 10^15, matching the NUMERIC(15,2) column.
var maxAmount = decimal.New(1, 15)

// ValidationError marks rejected input; handlers map it to a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Converter computes the INR-equivalent of an amount at the given date's rate.
type Converter interface {
	Convert(ctx context.Context, date time.Time, currency string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Service provides transaction business logic.
type Service struct {
	repo      repository.TransactionRepository
	converter Converter
	logger    *slog.Logger
}

// NewService creates a transaction service.
func NewService(repo repository.TransactionRepository, converter Converter, logger *slog.Logger) *Service {
	return &Service{repo: repo, converter: converter, logger: logger}
}

// AddParams carries the fields for a new transaction.
type AddParams struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
}

// Add validates the input, rejects active (date, description) twins with
// repository.ErrDuplicate, enriches the amount and inserts the record.
func (s *Service) Add(ctx context.Context, params AddParams) (*repository.Transaction, error) {
	description, err := validateDescription(params.Description)
	if err != nil {
		return nil, err
	}
	if err := validateDate(params.Date); err != nil {
		return nil, err
	}
	if err := validateAmount(params.Amount); err != nil {
		return nil, err
	}
	currency, err := validateCurrency(params.Currency)
	if err != nil {
		return nil, err
	}

	// Pre-flight conflict check; the partial unique index remains the last
	// line of defense against concurrent writers.
	existing, err := s.repo.FindOneActive(ctx, params.Date, description)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, repository.ErrDuplicate
	}

	amountInr, err := s.converter.Convert(ctx, params.Date, currency, params.Amount)
	if err != nil {
		return nil, err
	}

	tx := &repository.Transaction{
		Date:        params.Date,
		Description: description,
		Amount:      params.Amount,
		Currency:    currency,
		AmountINR:   amountInr,
	}
	if err := s.repo.Insert(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("transaction added", "id", tx.ID, "date", tx.Date.Format(normalizer.DateLayout))
	return tx, nil
}

// UpdateParams carries a partial update; nil fields are left unchanged.
type UpdateParams struct {
	ID          int64
	Date        *time.Time
	Description *string
	Amount      *decimal.Decimal
	Currency    *string
}

// Update applies the supplied fields to an active transaction. Changing the
// date or description re-checks the uniqueness invariant; changing the date,
// amount or currency recomputes the INR amount.
func (s *Service) Update(ctx context.Context, params UpdateParams) (*repository.Transaction, error) {
	tx, err := s.repo.FindActiveByID(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	keyChanged := false
	rateChanged := false

	if params.Date != nil {
		if err := validateDate(*params.Date); err != nil {
			return nil, err
		}
		if !params.Date.Equal(tx.Date) {
			tx.Date = *params.Date
			keyChanged = true
			rateChanged = true
		}
	}
	if params.Description != nil {
		description, err := validateDescription(*params.Description)
		if err != nil {
			return nil, err
		}
		if description != tx.Description {
			tx.Description = description
			keyChanged = true
		}
	}
	if params.Amount != nil {
		if err := validateAmount(*params.Amount); err != nil {
			return nil, err
		}
		if !params.Amount.Equal(tx.Amount) {
			tx.Amount = *params.Amount
			rateChanged = true
		}
	}
	if params.Currency != nil {
		currency, err := validateCurrency(*params.Currency)
		if err != nil {
			return nil, err
		}
		if currency != tx.Currency {
			tx.Currency = currency
			rateChanged = true
		}
	}

	if keyChanged {
		existing, err := s.repo.FindOneActive(ctx, tx.Date, tx.Description)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.ID != tx.ID {
			return nil, repository.ErrDuplicate
		}
	}

	if rateChanged {
		amountInr, err := s.converter.Convert(ctx, tx.Date, tx.Currency, tx.Amount)
		if err != nil {
			return nil, err
		}
		tx.AmountINR = amountInr
	}

	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Delete soft-deletes an active transaction. Soft deletion frees the
// (date, description) pair for future rows.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return err
	}
	tx.IsDeleted = true
	if err := s.repo.Update(ctx, tx); err != nil {
		return err
	}
	s.logger.Info("transaction soft-deleted", "id", id)
	return nil
}

// DeleteAll physically removes every row. Administrative only.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

// ListQuery carries the list surface parameters. Zero values select the
// defaults (page 1, limit 10, descending by date).
type ListQuery struct {
	Page      int
	Limit     int
	Sort      string
	Frequency int
	StartDate *time.Time
	EndDate   *time.Time
}

// ListResult is one page of active transactions.
type ListResult struct {
	CurrentPage  int                       `json:"currentPage"`
	TotalPages   int                       `json:"totalPages"`
	TotalCount   int                       `json:"totalCount"`
	Transactions []*repository.Transaction `json:"data"`
}

// List returns active transactions filtered by a rolling frequency window or
// an explicit date range, sorted by date and paginated.
func (s *Service) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, validationErr("Page must be at least 1")
	}

	limit := query.Limit
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > 100 {
		return nil, validationErr("Limit must be between 1 and 100")
	}

	sort := repository.SortDesc
	switch query.Sort {
	case "", "desc":
	case "asc":
		sort = repository.SortAsc
	default:
		return nil, validationErr(`Sort must be one of "asc" or "desc"`)
	}

	hasRange := query.StartDate != nil || query.EndDate != nil
	if query.Frequency != 0 && hasRange {
		return nil, validationErr("Frequency and startDate/endDate cannot be combined")
	}
	if query.Frequency < 0 {
		return nil, validationErr("Frequency must be at least 1")
	}

	var filter repository.ListFilter
	switch {
	case query.Frequency > 0:
		start := today().AddDate(0, 0, -query.Frequency)
		filter.StartDate = &start
	case hasRange:
		if query.StartDate == nil || query.EndDate == nil {
			return nil, validationErr("Both startDate and endDate must be provided together")
		}
		if query.StartDate.After(*query.EndDate) {
			return nil, validationErr("StartDate must be before or equal to EndDate")
		}
		filter.StartDate = query.StartDate
		filter.EndDate = query.EndDate
	}

	txs, err := s.repo.List(ctx, repository.ListParams{
		Filter: filter,
		Sort:   sort,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountActive(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &ListResult{
		CurrentPage:  page,
		TotalPages:   int(math.Ceil(float64(count) / float64(limit))),
		TotalCount:   count,
		Transactions: txs,
	}
	if result.Transactions == nil {
		result.Transactions = []*repository.Transaction{}
	}
	return result, nil
}

func validateDescription(raw string) (string, error) {
	description := normalizer.CleanDescription(raw)
	if char, found := normalizer.FindForbidden(description); found {
		return "", validationErr("Description contains an invalid special character: %q", char)
	}
	if description == "" {
		return "", validationErr("Description cannot be empty after trimming")
	}
	return description, nil
}

func validateCurrency(raw string) (string, error) {
	currency := normalizer.CleanDescription(raw)
	if currency == "" {
		return "", validationErr("Currency cannot be empty")
	}
	return currency, nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return validationErr("Amount must be a positive number")
	}
	if amount.Exponent() < -2 {
		return validationErr("Amount cannot have more than 2 decimal places")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return validationErr("Amount is too large")
	}
	return nil
}

func validateDate(date time.Time) error {
	if date.After(today()) {
		return validationErr("Date cannot be in the future")
	}
	return nil
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
