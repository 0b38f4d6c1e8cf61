// Package vectorstore defines the persistent similarity index the retrieval
// pipeline runs against. Entries are content-addressed by chunk ID; upsert is
// idempotent, and the similarity metric (cosine, 0-1) is fixed for the
// lifetime of a collection.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
)

// Entry is one stored (vector, text, metadata) triple.
type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is a query hit. Score is cosine similarity on a 0-1 scale.
type Result struct {
	Entry
	Score float32
}

// InconsistencyError reports a duplicate ID carrying different content. The
// ID scheme is a content hash, so this indicates store corruption or a hash
// collision rather than a normal re-ingestion.
type InconsistencyError struct {
	ID     string
	Reason string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent entry %s: %s", e.ID, e.Reason)
}

// Store is a named, persistent vector collection.
//
// Upsert inserts entries whose ID is not already present; existing IDs are
// left untouched. Query returns up to k entries in non-increasing score
// order.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SortByScore orders results by descending score. Backends already return
// ranked results; this keeps the ordering invariant independent of them.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
