package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/tradelens/ai-gateway/models"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// GenerationRepository persists the generation ledger
type GenerationRepository interface {
	// Insert inserts a single record
	Insert(ctx context.Context, rec *models.GenerationRecord) error

	// InsertBatch inserts all records in one transaction
	InsertBatch(ctx context.Context, recs []*models.GenerationRecord) error

	// GetByRequestID retrieves the record for a gateway request ID
	GetByRequestID(ctx context.Context, requestID string) (*models.GenerationRecord, error)

	// ListRecent returns the newest records first, optionally filtered by feature
	ListRecent(ctx context.Context, feature string, limit, offset int) ([]*models.GenerationRecord, error)

	// Summary aggregates records created in [start, end]
	Summary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Generations GenerationRepository
}
