package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only date format accepted from CSV rows: day-month-year,
// hyphen separated.
const DateLayout = "02-01-2006"

// Error messages are part of the import report contract; clients branch on
// them, so they stay stable.
var (
	ErrInvalidDate      = errors.New("Invalid date format")
	ErrEmptyDescription = errors.New("Description cannot be empty after trimming")
	ErrEmptyCurrency    = errors.New("Currency cannot be empty")
	ErrInvalidAmount    = errors.New("Invalid schema: Missing required fields or invalid amount")
)

// ForbiddenCharError names the exact offending code point.
type ForbiddenCharError struct {
	Char rune
}

func (e *ForbiddenCharError) Error() string {
	return fmt.Sprintf("Description contains an invalid special character: %q", e.Char)
}

// Row is a normalized transaction row, ready for duplicate detection.
type Row struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
}

// ParseDate parses a dd-mm-yyyy date into a calendar day. Impossible dates
// such as 31-02-2023 are rejected.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// CleanDescription trims the text and collapses every whitespace run into a
// single space.
func CleanDescription(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ParseAmount parses a positive decimal amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// NormalizeRow validates one raw CSV row field by field and produces the
// normalized form. The first failing check wins so the error message points
// at a single field; rejection never aborts the surrounding batch.
func NormalizeRow(rawDate, rawDescription, rawAmount, rawCurrency string) (*Row, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, err
	}

	description := CleanDescription(rawDescription)
	if char, found := FindForbidden(description); found {
		return nil, &ForbiddenCharError{Char: char}
	}
	if description == "" {
		return nil, ErrEmptyDescription
	}

	currency := strings.TrimSpace(rawCurrency)
	if currency == "" {
		return nil, ErrEmptyCurrency
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	return &Row{
		Date:        date,
		Description: description,
		Amount:      amount,
		Currency:    currency,
	}, nil
}
