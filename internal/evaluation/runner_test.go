package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSearcher struct {
	responses map[string][]string
	failures  map[string]error
	requests  []entities.SearchRequest
}

func (s *scriptedSearcher) Search(_ context.Context, req entities.SearchRequest) (*entities.SearchResponse, error) {
	s.requests = append(s.requests, req)
	if err := s.failures[req.RawQuery]; err != nil {
		return nil, err
	}
	resp := &entities.SearchResponse{TraceSummary: entities.TraceSummary{ErrorCount: 1}}
	for _, id := range s.responses[req.RawQuery] {
		resp.Results = append(resp.Results, entities.FormattedStall{PlaceID: id})
	}
	return resp, nil
}

func TestRunner_Run(t *testing.T) {
	searcher := &scriptedSearcher{
		responses: map[string][]string{
			"laksa":           {"p1", "x", "p2"},
			"noodles no beef": {"ok", "beef"},
		},
		failures: map[string]error{"prata": errors.New("search failed")},
	}
	runner := NewRunner(searcher)
	tick := time.Unix(0, 0)
	runner.now = func() time.Time {
		tick = tick.Add(10 * time.Millisecond)
		return tick
	}

	here := &entities.Coordinates{Lat: 1.3, Lng: 103.85}
	summary := runner.Run(context.Background(), []GoldenQuery{
		{ID: "q1", Query: "laksa", Category: CategoryDish, ExpectedPlaceIDs: []string{"p1", "p2"}},
		{ID: "q2", Query: "prata", Category: CategoryLocation, UserLocation: here, UseLLMRanking: true, ExpectedPlaceIDs: []string{"p3"}},
		{ID: "q3", Query: "noodles no beef", Category: CategoryExclusion, ForbiddenPlaceIDs: []string{"beef"}},
	})

	require.Len(t, summary.Results, 3)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 1, summary.FailedQueries)
	assert.Equal(t, 2, summary.QueriesWithHits)
	assert.Equal(t, 1, summary.Violations)
	assert.InDelta(t, 1.0/3.0, summary.AvgRecallAt10, 1e-9)
	assert.InDelta(t, 1.0/3.0, summary.AvgMRRAt10, 1e-9)
	assert.Equal(t, 10*time.Millisecond, summary.AvgLatency)

	assert.Equal(t, "search failed", summary.Results[1].Err)
	assert.Equal(t, []string{"beef"}, summary.Results[2].Violations)
	assert.Equal(t, 1, summary.Results[0].TraceErrors)

	require.Contains(t, summary.ByCategory, CategoryDish)
	assert.Equal(t, 1, summary.ByCategory[CategoryDish].Count)
	assert.InDelta(t, 1.0, summary.ByCategory[CategoryDish].AvgRecallAt10, 1e-9)

	require.Len(t, searcher.requests, 3)
	assert.Same(t, here, searcher.requests[1].UserLocation)
	assert.True(t, searcher.requests[1].Options.UseLLMRanking)
}

func TestRunner_Empty(t *testing.T) {
	summary := NewRunner(&scriptedSearcher{}).Run(context.Background(), nil)
	assert.Zero(t, summary.TotalQueries)
	assert.Zero(t, summary.AvgRecallAt10)
	assert.Empty(t, summary.Results)
}
