// Package exchange talks to the external INR exchange-rate service and
// converts transaction amounts at the transaction date's rate.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrConversionFailed tags every failure of the rate collaborator so callers
// can distinguish conversion problems from generic server errors.
var ErrConversionFailed = errors.New("failed to convert currency")

// RateSource returns the INR conversion factor for (date, currency).
type RateSource interface {
	Rate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error)
}

// Client fetches rates from the HTTP rate service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a rate client. The timeout bounds every lookup; the
// collaborator must never hang an import.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type rateResponse struct {
	Rate json.Number `json:"rate"`
}

// Rate fetches the INR rate for the given calendar day and currency code.
func (c *Client) Rate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/v1/ratesininr/%s/%s", c.baseURL, date.Format("2006-01-02"), currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: rate service returned status %d for %s/%s",
			ErrConversionFailed, resp.StatusCode, date.Format("2006-01-02"), currency)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid response body: %v", ErrConversionFailed, err)
	}

	rate, err := decimal.NewFromString(body.Rate.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid rate %q", ErrConversionFailed, body.Rate.String())
	}

	return rate, nil
}

// Converter computes INR-equivalent amounts through a RateSource.
type Converter struct {
	rates RateSource
}

// NewConverter creates a converter backed by the given rate source.
func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// Convert returns amount * rate(date, currency), rounded to two decimals.
func (c *Converter) Convert(ctx context.Context, date time.Time, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.rates.Rate(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Mul(amount).Round(2), nil
}
