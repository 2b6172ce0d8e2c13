package services

import (
	"context"
	"errors"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/lib/pq"
	"github.com/panjf2000/ants/v2"
)

const (
	traceInsertTimeout = 5 * time.Second
	undefinedTableCode = "42P01"
)

// SearchTraceService persists finalized traces off the request path.
// Record never blocks and never returns an error to the caller.
type SearchTraceService struct {
	repo repositories.SearchTraceRepository
	pool *ants.Pool
}

// NewSearchTraceService creates a recorder backed by a non-blocking worker pool.
func NewSearchTraceService(repo repositories.SearchTraceRepository, poolSize int) (*SearchTraceService, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &SearchTraceService{repo: repo, pool: pool}, nil
}

// Record schedules the trace for insertion. If the pool is saturated the
// trace is dropped with a warning.
func (s *SearchTraceService) Record(ctx context.Context, trace *entities.SearchTrace) {
	if s == nil || trace == nil {
		return
	}
	logger := observability.LoggerFromContext(observability.WithSearchTrace(ctx, trace.ID))

	err := s.pool.Submit(func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), traceInsertTimeout)
		defer cancel()

		if err := s.repo.Insert(insertCtx, trace); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTableCode {
				logger.Warn().Err(err).Msg("search_traces table missing, trace not persisted")
				return
			}
			logger.Error().Err(err).Msg("failed to persist search trace")
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("trace pool unavailable, dropping trace")
	}
}

// Close waits up to timeout for queued inserts, then releases the pool.
func (s *SearchTraceService) Close(timeout time.Duration) error {
	if s == nil {
		return nil
	}
	return s.pool.ReleaseTimeout(timeout)
}
