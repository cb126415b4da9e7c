// Package observability provides structured logging and metrics for the AI gateway.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL/LOG_FORMAT
//   - Request ID propagation through context.Context
//   - A fire-and-forget Metrics sink backed by zap
package observability
