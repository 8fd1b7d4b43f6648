package repository

import (
	"context"

	"EarnPull/internal/domain/models"
)

// Fetcher retrieves a page from a data source. Implementations own timeouts,
// politeness and response size limits; a non-nil error is a transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, method, path string) ([]byte, error)
}

// Publisher announces record changes to downstream consumers.
type Publisher interface {
	PublishChange(ctx context.Context, c models.EarningsChange) error
	Close() error
}

type Metrics interface {
	RecordFetch(source, result string)
	RecordParseFailure(source string)
	RecordCacheSize(n int)
	RecordSnapshot(op, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
