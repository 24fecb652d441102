package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRate(t *testing.T) {
	t.Run("fetches and parses rate", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rate": 83.25}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, time.Second)
		rate, err := client.Rate(context.Background(), time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), "USD")
		require.NoError(t, err)
		assert.Equal(t, "/api/v1/ratesininr/2025-02-01/USD", gotPath)
		assert.True(t, rate.Equal(decimal.RequireFromString("83.25")))
	})

	t.Run("trailing slash in base URL", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"rate": 1}`))
		}))
		defer server.Close()

		client := NewClient(server.URL+"/", time.Second)
		_, err := client.Rate(context.Background(), time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), "INR")
		require.NoError(t, err)
		assert.Equal(t, "/api/v1/ratesininr/2025-02-01/INR", gotPath)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(server.URL, time.Second)
		_, err := client.Rate(context.Background(), time.Now(), "XYZ")
		assert.ErrorIs(t, err, ErrConversionFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		client := NewClient(server.URL, time.Second)
		_, err := client.Rate(context.Background(), time.Now(), "USD")
		assert.ErrorIs(t, err, ErrConversionFailed)
	})

	t.Run("unreachable service", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
		_, err := client.Rate(context.Background(), time.Now(), "USD")
		assert.ErrorIs(t, err, ErrConversionFailed)
	})
}

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) Rate(context.Context, time.Time, string) (decimal.Decimal, error) {
	return f.rate, f.err
}

func TestConverterConvert(t *testing.T) {
	t.Run("multiplies and rounds to paise", func(t *testing.T) {
		conv := NewConverter(fixedRate{rate: decimal.RequireFromString("83.333")})
		got, err := conv.Convert(context.Background(), time.Now(), "USD", decimal.RequireFromString("10.01"))
		require.NoError(t, err)
		// 83.333 * 10.01 = 834.16333
		assert.Equal(t, "834.16", got.StringFixed(2))
	})

	t.Run("propagates rate errors", func(t *testing.T) {
		conv := NewConverter(fixedRate{err: ErrConversionFailed})
		_, err := conv.Convert(context.Background(), time.Now(), "USD", decimal.NewFromInt(1))
		assert.True(t, errors.Is(err, ErrConversionFailed))
	})
}
