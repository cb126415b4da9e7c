// Package ledger persists one row per gateway call without slowing the caller down.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/models"
	"github.com/tradelens/ai-gateway/repositories"
	"github.com/tradelens/ai-gateway/services"
	"github.com/tradelens/ai-gateway/services/gateway"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBatch         = 50
)

// Service records gateway outcomes asynchronously
type Service struct {
	repo        repositories.GenerationRepository
	logger      *zap.Logger
	records     chan *models.GenerationRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	dropped     atomic.Int64
	written     atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool
}

// Config holds configuration for the ledger Service
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates a ledger service. Call Start before recording.
func NewService(repo repositories.GenerationRepository, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:        repo,
		logger:      logger.Named("ledger"),
		records:     make(chan *models.GenerationRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("ledger service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started ledger service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting records and waits for queued ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("ledger service not running")
	}
	s.stopped = true
	close(s.records)
	s.mu.Unlock()

	s.logger.Info("stopping ledger service", zap.Int("pending_records", len(s.records)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("ledger service stopped gracefully",
			zap.Int64("written", s.written.Load()),
			zap.Int64("dropped", s.dropped.Load()))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("ledger service stop timeout after %v", timeout)
	}
}

// RecordOutcome implements gateway.OutcomeRecorder. It never blocks;
// records are dropped when the buffer is full or the service is not running.
func (s *Service) RecordOutcome(out gateway.Outcome) {
	rec := RecordFromOutcome(out)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		s.dropped.Add(1)
		return
	}

	select {
	case s.records <- rec:
	default:
		s.dropped.Add(1)
		s.logger.Warn("ledger buffer full, dropping record",
			zap.String("request_id", rec.RequestID),
			zap.String("status", string(rec.Status)))
	}
}

// Recent lists the newest records. limit is clamped to [1, 500]; 0 means 50.
func (s *Service) Recent(ctx context.Context, feature string, limit, offset int) ([]*models.GenerationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	recs, err := s.repo.ListRecent(ctx, feature, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list generation records", err)
	}
	return recs, nil
}

// Get returns the record for a request ID
func (s *Service) Get(ctx context.Context, requestID string) (*models.GenerationRecord, error) {
	rec, err := s.repo.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrGenerationNotFound
		}
		return nil, services.WrapInternal("failed to get generation record", err)
	}
	return rec, nil
}

// Summary aggregates the records of the last `since`
func (s *Service) Summary(ctx context.Context, since time.Duration) (*models.UsageSummary, error) {
	end := time.Now().UTC()
	summary, err := s.repo.Summary(ctx, end.Add(-since), end)
	if err != nil {
		return nil, services.WrapInternal("failed to summarize usage", err)
	}
	return summary, nil
}

// Stats returns statistics about the ledger service
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.records),
		WorkerCount:    s.workerCount,
		Written:        s.written.Load(),
		Dropped:        s.dropped.Load(),
		Started:        s.started && !s.stopped,
	}
}

// Stats represents ledger service statistics
type Stats struct {
	BufferSize     int   `json:"buffer_size"`
	PendingRecords int   `json:"pending_records"`
	WorkerCount    int   `json:"worker_count"`
	Written        int64 `json:"written"`
	Dropped        int64 `json:"dropped"`
	Started        bool  `json:"started"`
}

// worker drains whatever is queued and writes it in one batch
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("ledger worker started", zap.Int("worker_id", id))

	for rec := range s.records {
		batch := []*models.GenerationRecord{rec}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-s.records:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		if err := s.write(batch); err != nil {
			s.logger.Error("failed to write ledger records",
				zap.Int("worker_id", id),
				zap.Int("count", len(batch)),
				zap.Error(err))
			continue
		}
		s.written.Add(int64(len(batch)))
	}

	s.logger.Debug("ledger worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(batch []*models.GenerationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(batch) == 1 {
		return s.repo.Insert(ctx, batch[0])
	}
	return s.repo.InsertBatch(ctx, batch)
}

// RecordFromOutcome converts a gateway outcome into a ledger row
func RecordFromOutcome(out gateway.Outcome) *models.GenerationRecord {
	rec := models.NewGenerationRecord(out.RequestID, models.GenerationStatus(out.Status))
	if !out.CreatedAt.IsZero() {
		rec.CreatedAt = out.CreatedAt.UTC()
	}
	rec.Feature = out.Feature
	rec.Provider = out.Provider
	rec.Model = out.Model
	rec.CacheKey = out.CacheKey
	rec.Cached = out.Cached
	rec.Attempts = out.Attempts
	rec.PromptChars = out.PromptChars
	rec.LatencyMs = int(out.Latency.Milliseconds())
	return rec.
		WithUsage(out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens).
		WithError(out.Error)
}
