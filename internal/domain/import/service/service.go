// Package service orchestrates the CSV import pipeline: tokenize, normalize,
// deduplicate, enrich with INR rates and bulk-persist, producing a per-row
// report of what was saved, duplicated or rejected.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rupeeledger/rupee-ledger/internal/domain/import/dedup"
	"github.com/rupeeledger/rupee-ledger/internal/domain/import/normalizer"
	"github.com/rupeeledger/rupee-ledger/internal/domain/import/parser"
	"github.com/rupeeledger/rupee-ledger/internal/domain/transaction/repository"
	"github.com/rupeeledger/rupee-ledger/pkg/config"
	"github.com/rupeeledger/rupee-ledger/pkg/metrics"
)

// Report messages. "Empty file" also covers files whose every row was a
// duplicate or an error; the name is historical, not literal.
const (
	MessageProcessed = "File processed successfully"
	MessageEmpty     = "Empty file"
)

// Converter computes the INR-equivalent of an amount at the given date's rate.
type Converter interface {
	Convert(ctx context.Context, date time.Time, currency string, amount decimal.Decimal) (decimal.Decimal, error)
}

// SchemaError records one rejected row together with the reason.
type SchemaError struct {
	Row     parser.RawRow `json:"row"`
	Message string        `json:"message"`
}

// UploadResult is the structured import report returned to the caller.
type UploadResult struct {
	Message           string          `json:"message"`
	TransactionsSaved int             `json:"transactionsSaved"`
	Duplicates        []parser.RawRow `json:"duplicates"`
	SchemaErrors      []SchemaError   `json:"schemaErrors"`
}

// ImportService sequences the import pipeline stages.
type ImportService struct {
	repo      repository.TransactionRepository
	converter Converter
	policy    config.ConversionPolicy
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// NewImportService creates an import service with per-row conversion
// failure isolation and a default worker count.
func NewImportService(repo repository.TransactionRepository, converter Converter, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:      repo,
		converter: converter,
		policy:    config.ConversionPolicyIsolate,
		workers:   8,
		logger:    logger,
		tracer:    otel.Tracer("github.com/rupeeledger/rupee-ledger/internal/domain/import"),
	}
}

// WithConversionPolicy overrides the enrichment failure policy.
func (s *ImportService) WithConversionPolicy(policy config.ConversionPolicy) *ImportService {
	s.policy = policy
	return s
}

// WithWorkers bounds the number of concurrent rate lookups.
func (s *ImportService) WithWorkers(n int) *ImportService {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithMetrics adds Prometheus instrumentation to the service.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

type candidate struct {
	raw  parser.RawRow
	norm *normalizer.Row
}

// Import processes one uploaded CSV file. Row-scoped problems land in the
// report buckets; only whole-file failures (tokenizer, store, or — under the
// abort policy — conversion) fail the call. The single durable side effect
// is the bulk insert at the end.
func (s *ImportService) Import(ctx context.Context, fileData []byte) (*UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.csv")
	defer span.End()
	start := time.Now()

	rows, err := parser.Parse(fileData)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Duplicates:   []parser.RawRow{},
		SchemaErrors: []SchemaError{},
	}

	// Stage 1: normalize rows and catch file-level duplicates. First
	// occurrence of a (date, description) pair wins.
	detector := dedup.NewDetector()
	var candidates []candidate
	for _, raw := range rows {
		norm, err := normalizer.NormalizeRow(raw.Date, raw.Description, raw.Amount, raw.Currency)
		if err != nil {
			result.SchemaErrors = append(result.SchemaErrors, SchemaError{Row: raw, Message: err.Error()})
			continue
		}

		raw.Description = norm.Description
		raw.Currency = norm.Currency

		if detector.Seen(norm.Date, norm.Description) {
			result.Duplicates = append(result.Duplicates, raw)
			continue
		}
		candidates = append(candidates, candidate{raw: raw, norm: norm})
	}

	// Stage 2: one bulk existence query against active stored rows. Store
	// matches are reported with the stored record's values, not the CSV's.
	pairs := make([]repository.DateDescription, len(candidates))
	for i, c := range candidates {
		pairs[i] = repository.DateDescription{Date: c.norm.Date, Description: c.norm.Description}
	}
	existing, err := dedup.FindExisting(ctx, s.repo, pairs)
	if err != nil {
		return nil, err
	}

	var final []candidate
	for _, c := range candidates {
		if stored, ok := existing[dedup.Key(c.norm.Date, c.norm.Description)]; ok {
			result.Duplicates = append(result.Duplicates, storedRow(stored))
			continue
		}
		final = append(final, c)
	}

	// Stage 3: concurrent INR enrichment for the survivors.
	converted, convErrs := s.convertAll(ctx, final)

	if s.policy == config.ConversionPolicyAbort {
		for _, err := range convErrs {
			if err != nil {
				return nil, err
			}
		}
	}

	txs := make([]*repository.Transaction, 0, len(final))
	for i, c := range final {
		if convErrs[i] != nil {
			result.SchemaErrors = append(result.SchemaErrors, SchemaError{Row: c.raw, Message: convErrs[i].Error()})
			continue
		}
		txs = append(txs, &repository.Transaction{
			Date:        c.norm.Date,
			Description: c.norm.Description,
			Amount:      c.norm.Amount,
			Currency:    c.norm.Currency,
			AmountINR:   converted[i],
		})
	}

	// Stage 4: one bulk insert.
	saved, err := s.repo.BulkInsert(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}
	result.TransactionsSaved = saved

	if saved > 0 {
		result.Message = MessageProcessed
	} else {
		result.Message = MessageEmpty
	}

	span.SetAttributes(
		attribute.Int("import.rows_total", len(rows)),
		attribute.Int("import.rows_saved", saved),
		attribute.Int("import.rows_duplicate", len(result.Duplicates)),
		attribute.Int("import.rows_rejected", len(result.SchemaErrors)),
	)
	if s.metrics != nil {
		s.metrics.ImportsTotal.Inc()
		s.metrics.RowsSaved.Add(float64(saved))
		s.metrics.RowsDuplicate.Add(float64(len(result.Duplicates)))
		s.metrics.RowsRejected.Add(float64(len(result.SchemaErrors)))
		s.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("csv import finished",
		"rows", len(rows),
		"saved", saved,
		"duplicates", len(result.Duplicates),
		"schemaErrors", len(result.SchemaErrors),
		"duration", time.Since(start),
	)

	return result, nil
}

// convertAll runs the rate lookups through a bounded worker pool. Results
// stay index-aligned with the input so bucket order tracks row order.
func (s *ImportService) convertAll(ctx context.Context, rows []candidate) ([]decimal.Decimal, []error) {
	amounts := make([]decimal.Decimal, len(rows))
	errs := make([]error, len(rows))

	workers := s.workers
	if workers > len(rows) {
		workers = len(rows)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				norm := rows[i].norm
				amounts[i], errs[i] = s.converter.Convert(ctx, norm.Date, norm.Currency, norm.Amount)
			}
		}()
	}
	for i := range rows {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return amounts, errs
}

// storedRow renders a stored record as a report row, including its
// already-computed INR amount.
func storedRow(tx *repository.Transaction) parser.RawRow {
	return parser.RawRow{
		Date:        tx.Date.Format(normalizer.DateLayout),
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
		Currency:    tx.Currency,
		AmountINR:   tx.AmountINR.StringFixed(2),
	}
}
