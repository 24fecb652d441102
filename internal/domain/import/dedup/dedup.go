// Package dedup implements the two-tier duplicate detection for imports:
// an in-batch seen-set plus a single bulk existence query against the store.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rupeeledger/rupee-ledger/internal/domain/transaction/repository"
)

// Store is the slice of the repository the detector needs.
type Store interface {
	FindActiveByPairs(ctx context.Context, pairs []repository.DateDescription) ([]*repository.Transaction, error)
}

// Key builds the composite batch key for a (date, description) pair.
func Key(date time.Time, description string) string {
	return date.Format("2006-01-02") + "\x00" + description
}

// Detector tracks (date, description) pairs already accepted in the current
// batch. First occurrence wins; later ones are duplicates, not errors.
type Detector struct {
	seen map[string]struct{}
}

// NewDetector creates an empty in-batch detector.
func NewDetector() *Detector {
	return &Detector{seen: make(map[string]struct{})}
}

// Seen reports whether the pair was already accepted in this batch and, if
// not, marks it as seen.
func (d *Detector) Seen(date time.Time, description string) bool {
	key := Key(date, description)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// FindExisting issues one bulk query for every candidate pair and returns
// the active store matches keyed by Key. Soft-deleted rows never match.
func FindExisting(ctx context.Context, store Store, pairs []repository.DateDescription) (map[string]*repository.Transaction, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	matches, err := store.FindActiveByPairs(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to check stored duplicates: %w", err)
	}

	existing := make(map[string]*repository.Transaction, len(matches))
	for _, tx := range matches {
		existing[Key(tx.Date, tx.Description)] = tx
	}
	return existing, nil
}
