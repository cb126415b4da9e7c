package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultBatchConcurrency bounds in-flight items when the config leaves it unset
const DefaultBatchConcurrency = 4

// GenerateBatch runs every request through Generate with bounded concurrency.
// The result has the same length and order as reqs. A failed item yields a
// Response with empty Content instead of an error.
func (g *Gateway) GenerateBatch(ctx context.Context, reqs []*Request) []*Response {
	responses := make([]*Response, len(reqs))
	if len(reqs) == 0 {
		return responses
	}

	limit := g.cfg.BatchConcurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				responses[i] = &Response{}
				return
			}

			if ctx.Err() != nil {
				responses[i] = &Response{}
				return
			}

			resp, err := g.Generate(ctx, req)
			if err != nil {
				g.logger.Warn("batch item failed", zap.Int("index", i), zap.Error(err))
				responses[i] = &Response{}
				return
			}
			responses[i] = resp
		}(i, req)
	}
	wg.Wait()

	return responses
}
