package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/models"
	"github.com/tradelens/ai-gateway/repositories"
)

const generationColumns = `id, request_id, feature, status, provider, model, cache_key, cached,
		       attempts, prompt_chars, prompt_tokens, completion_tokens, total_tokens,
		       latency_ms, error_message, created_at`

// GenerationRepository implements repositories.GenerationRepository
type GenerationRepository struct {
	db     *DB
	tm     *TransactionManager
	logger *zap.Logger
}

// NewGenerationRepository creates a new generation ledger repository
func NewGenerationRepository(db *DB, logger *zap.Logger) repositories.GenerationRepository {
	return &GenerationRepository{
		db:     db,
		tm:     NewTransactionManager(db, logger),
		logger: logger,
	}
}

// Insert inserts a single ledger row
func (r *GenerationRepository) Insert(ctx context.Context, rec *models.GenerationRecord) error {
	query := `
		INSERT INTO gateway_requests (
			id, request_id, feature, status, provider, model, cache_key, cached,
			attempts, prompt_chars, prompt_tokens, completion_tokens, total_tokens,
			latency_ms, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.Feature,
		rec.Status,
		rec.Provider,
		rec.Model,
		rec.CacheKey,
		rec.Cached,
		rec.Attempts,
		rec.PromptChars,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.LatencyMs,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}

	r.logger.Debug("generation record inserted",
		zap.String("request_id", rec.RequestID),
		zap.String("status", string(rec.Status)))
	return nil
}

// InsertBatch inserts every record in a single transaction
func (r *GenerationRepository) InsertBatch(ctx context.Context, recs []*models.GenerationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.tm.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		for _, rec := range recs {
			if err := r.Insert(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByRequestID retrieves the newest record for a request ID
func (r *GenerationRepository) GetByRequestID(ctx context.Context, requestID string) (*models.GenerationRecord, error) {
	query := `
		SELECT ` + generationColumns + `
		FROM gateway_requests
		WHERE request_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	executor := GetExecutor(ctx, r.db)
	rec, err := scanGenerationRecord(executor.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("generation record %s: %w", requestID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get generation record: %w", err)
	}
	return rec, nil
}

// ListRecent lists records newest first. An empty feature matches all rows.
func (r *GenerationRepository) ListRecent(ctx context.Context, feature string, limit, offset int) ([]*models.GenerationRecord, error) {
	query := `
		SELECT ` + generationColumns + `
		FROM gateway_requests
		WHERE ($1::text = '' OR feature = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, feature, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.GenerationRecord, 0, limit)
	for rows.Next() {
		rec, err := scanGenerationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation record rows: %w", err)
	}

	return records, nil
}

// Summary aggregates ledger rows created in [start, end]
func (r *GenerationRepository) Summary(ctx context.Context, start, end time.Time) (*models.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN status = 'success' THEN 1 END) as success_requests,
			COUNT(CASE WHEN status = 'cached' THEN 1 END) as cached_requests,
			COUNT(CASE WHEN status = 'fallback' THEN 1 END) as fallback_requests,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed_requests,
			COUNT(CASE WHEN status = 'rate_limited' THEN 1 END) as rate_limited,
			COALESCE(SUM(total_tokens), 0) as total_tokens,
			COALESCE(AVG(latency_ms), 0) as avg_latency_ms
		FROM gateway_requests
		WHERE created_at >= $1 AND created_at <= $2
	`

	executor := GetExecutor(ctx, r.db)
	summary := &models.UsageSummary{}

	err := executor.QueryRowContext(ctx, query, start, end).Scan(
		&summary.TotalRequests,
		&summary.SuccessRequests,
		&summary.CachedRequests,
		&summary.FallbackRequests,
		&summary.FailedRequests,
		&summary.RateLimited,
		&summary.TotalTokens,
		&summary.AvgLatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage summary: %w", err)
	}

	return summary, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGenerationRecord(row rowScanner) (*models.GenerationRecord, error) {
	rec := &models.GenerationRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Feature,
		&rec.Status,
		&rec.Provider,
		&rec.Model,
		&rec.CacheKey,
		&rec.Cached,
		&rec.Attempts,
		&rec.PromptChars,
		&rec.PromptTokens,
		&rec.CompletionTokens,
		&rec.TotalTokens,
		&rec.LatencyMs,
		&rec.ErrorMessage,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
