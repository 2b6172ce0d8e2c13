package evaluation

import (
	"context"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
)

// Searcher answers free-text searches.
type Searcher interface {
	Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	searcher Searcher
	now      func() time.Time
}

func NewRunner(searcher Searcher) *Runner {
	return &Runner{searcher: searcher, now: time.Now}
}

// Run issues every query sequentially. A failing query is recorded and the
// run continues.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) *EvalSummary {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByCategory:   make(map[Category]*CategoryStats),
		Results:      make([]EvalResult, 0, len(queries)),
	}

	for _, gq := range queries {
		if ctx.Err() != nil {
			break
		}
		result := r.evaluate(ctx, gq)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary
}

func (r *Runner) evaluate(ctx context.Context, gq GoldenQuery) EvalResult {
	result := EvalResult{QueryID: gq.ID, Category: gq.Category}

	start := r.now()
	resp, err := r.searcher.Search(ctx, entities.SearchRequest{
		RawQuery:     gq.Query,
		UserLocation: gq.UserLocation,
		Options:      entities.SearchOptions{UseLLMRanking: gq.UseLLMRanking},
	})
	result.Latency = r.now().Sub(start)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	ids := make([]string, len(resp.Results))
	for i, res := range resp.Results {
		ids[i] = res.PlaceID
	}

	result.ResultCount = len(ids)
	result.RecallAt10 = RecallAtK(gq.ExpectedPlaceIDs, ids, 10)
	result.MRRAt10 = MRRAtK(gq.ExpectedPlaceIDs, ids, 10)
	result.Violations = Forbidden(gq.ForbiddenPlaceIDs, ids)
	result.TraceErrors = resp.TraceSummary.ErrorCount
	return result
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	s.Violations += len(res.Violations)
	if res.Err != "" {
		s.FailedQueries++
	}
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	stats, ok := s.ByCategory[res.Category]
	if !ok {
		stats = &CategoryStats{}
		s.ByCategory[res.Category] = stats
	}
	stats.Count++
	stats.AvgRecallAt10 += res.RecallAt10
	stats.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if n := len(s.Results); n > 0 {
		s.AvgRecallAt10 /= float64(n)
		s.AvgMRRAt10 /= float64(n)
		s.AvgLatency /= time.Duration(n)
	}

	for _, stats := range s.ByCategory {
		if stats.Count > 0 {
			n := float64(stats.Count)
			stats.AvgRecallAt10 /= n
			stats.AvgMRRAt10 /= n
		}
	}
}
