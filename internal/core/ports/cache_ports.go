package ports

import "context"

// ResultsCache keeps per-option vote counts warm for renderers, so read
// traffic does not touch the aggregate's lock or the database. Eventual
// consistency is acceptable here.
type ResultsCache interface {
	UpdateCounts(ctx context.Context, pollID int64, counts map[int64]int) error
	Counts(ctx context.Context, pollID int64) (map[int64]int, error)
}
