package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielcwq/stall-finder/internal/adapters/providers/geolocation"
	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/pkg/config"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Bugis is 1.3008, 103.8558 in the gazetteer.
var (
	nearBugis = [2]float64{1.3010, 103.8560}
	midBugis  = [2]float64{1.3100, 103.8600}
	farBugis  = [2]float64{1.4400, 103.7800} // Woodlands, well beyond 5 km
)

type searchHarness struct {
	interpret *MockCompletionProvider
	rank      *MockCompletionProvider
	geocoder  *MockGeocodingProvider
	repo      *MockStallRepository
	index     *MockStallVectorIndex
	embedder  *MockEmbeddingProvider
	reranker  *MockRerankProvider
	recorder  *fakeRecorder
	svc       *SearchService
}

func newSearchHarness(t *testing.T) *searchHarness {
	t.Helper()
	h := &searchHarness{
		interpret: new(MockCompletionProvider),
		rank:      new(MockCompletionProvider),
		geocoder:  new(MockGeocodingProvider),
		repo:      new(MockStallRepository),
		index:     new(MockStallVectorIndex),
		embedder:  new(MockEmbeddingProvider),
		reranker:  new(MockRerankProvider),
		recorder:  &fakeRecorder{},
	}
	h.geocoder.On("Geocode", mock.Anything, mock.Anything).Return(nil, errors.New("onemap disabled")).Maybe()

	cfg := config.DefaultRankingConfig()
	weighted := NewWeightedRankingService(cfg, h.reranker)
	weighted.now = func() time.Time { return rankNow }

	h.svc = NewSearchService(
		NewQueryInterpreterService(h.interpret, 0),
		NewLocationResolverService(h.geocoder, geolocation.NewSingaporeGazetteer()),
		NewCandidateStoreService(h.repo, h.index, h.embedder, 0.3, 50),
		weighted,
		NewLLMRankingService(h.rank, 0.2, cfg.TopN),
		h.recorder,
		nil,
		SearchSettings{RadiusKm: 5, TopN: cfg.TopN, LLMMaxCandidates: cfg.LLMMaxCandidates},
	)
	return h
}

func (h *searchHarness) intent(json string) {
	h.interpret.On("Complete", mock.Anything, mock.Anything).Return(json, nil)
}

func at(id, name string, pos [2]float64) *entities.StallRecord {
	return stall(id, name, pos[0], pos[1])
}

func TestSearch_LLMRankingWithNamedLocation(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"chicken rice","location_name":"bugis","use_current_location":false,"location_intent":"nearby","cuisine":null,"price":"moderate","exclusions":[]}`)

	h.repo.On("FetchOpenStalls", mock.Anything, repositories.StallFilter{
		Price:  "moderate",
		Policy: entities.AgentPricePolicy,
	}).Return([]*entities.StallRecord{
		at("mid", "Mid Stall", midBugis),
		at("far", "Far Stall", farBugis),
		at("near", "Near Stall", nearBugis),
	}, nil)
	h.rank.On("Complete", mock.Anything, mock.Anything).Return(`{"ranked_ids":[2,1],"reasoning":"closest first"}`, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery: "chicken rice near bugis",
		Options:  entities.SearchOptions{UseLLMRanking: true},
	})
	require.NoError(t, err)

	// distance filter sorted [near, mid]; the model picked position 2 then 1
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "mid", resp.Results[0].PlaceID)
	assert.Equal(t, "near", resp.Results[1].PlaceID)
	require.NotNil(t, resp.Results[0].DistanceKm)
	assert.Equal(t, "closest first", *resp.Reasoning)

	require.NotNil(t, resp.SearchCenter)
	assert.Equal(t, entities.GeocodeSourceFallback, resp.SearchCenter.Source)
	assert.Equal(t, 1.3008, resp.SearchCenter.Lat)

	assert.Nil(t, resp.Trace)
	assert.Equal(t, 2, resp.TraceSummary.ResultCount)
	assert.Equal(t, entities.RankingEngineLLM, resp.TraceSummary.Engine)
	assert.Equal(t, 1, resp.TraceSummary.ErrorCount) // geocoder fallback

	require.Len(t, h.recorder.traces, 1)
	trace := h.recorder.traces[0]
	assert.Equal(t, 3, trace.Filter.InputCount)
	assert.Equal(t, 2, trace.Filter.OutputCount)
	assert.Equal(t, "agent_exclusive", trace.Retrieval.PricePolicy)
	assert.NotNil(t, trace.FinalizedAt)
}

func TestSearch_WeightedSemanticNoCenter(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"laksa","exclusions":[]}`)

	h.embedder.On("Embed", mock.Anything, "laksa").Return([]float32{0.1}, nil)
	h.index.On("MatchStalls", mock.Anything, []float32{0.1}, 0.3, 50).Return([]repositories.VectorMatch{
		{Stall: at("low", "Low", farBugis), Similarity: 0.4},
		{Stall: at("high", "High", nearBugis), Similarity: 0.9},
	}, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery: "laksa",
		Options:  entities.SearchOptions{Debug: true},
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "high", resp.Results[0].PlaceID)
	assert.Nil(t, resp.Results[0].DistanceKm)
	require.NotNil(t, resp.Results[0].Similarity)
	assert.Nil(t, resp.SearchCenter)
	assert.Nil(t, resp.Reasoning)
	assert.Equal(t, "laksa", resp.ParsedIntent.FoodQuery)

	require.NotNil(t, resp.Trace)
	assert.Equal(t, RetrievalSemantic, resp.Trace.Retrieval.Mode)
	assert.Equal(t, GeocodeModeNone, resp.Trace.Geocode.Mode)
	h.repo.AssertNotCalled(t, "FetchOpenStalls", mock.Anything, mock.Anything)
	h.rank.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSearch_SemanticFailureFallsBackToStructured(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"laksa","cuisine":"peranakan"}`)

	h.embedder.On("Embed", mock.Anything, "laksa").Return(nil, errors.New("quota exceeded"))
	h.repo.On("FetchOpenStalls", mock.Anything, mock.MatchedBy(func(f repositories.StallFilter) bool {
		return f.Cuisine == "peranakan"
	})).Return([]*entities.StallRecord{at("a", "A", nearBugis)}, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{RawQuery: "peranakan laksa", Options: entities.SearchOptions{Debug: true}})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Nil(t, resp.Results[0].Similarity)
	assert.Equal(t, RetrievalStructured, resp.Trace.Retrieval.Mode)
	require.Len(t, resp.Trace.Errors, 1)
	assert.Equal(t, entities.StepRetrieval, resp.Trace.Errors[0].Step)
}

func TestSearch_ZeroCandidates(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"durian","location_name":"bugis"}`)
	h.repo.On("FetchOpenStalls", mock.Anything, mock.Anything).Return([]*entities.StallRecord{
		at("far", "Far", farBugis),
	}, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery: "durian in bugis",
		Options:  entities.SearchOptions{UseLLMRanking: true, Debug: true},
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	require.NotNil(t, resp.Reasoning)
	assert.Equal(t, NoCandidatesReasoning, *resp.Reasoning)
	assert.Equal(t, []string{}, resp.Trace.Ranking.RankedIDs)
	assert.Zero(t, resp.Trace.Ranking.LatencyMs)
	h.rank.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSearch_ParseFailureIsFatal(t *testing.T) {
	h := newSearchHarness(t)
	h.intent("I cannot help with that")

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{RawQuery: "laksa"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))

	require.Len(t, h.recorder.traces, 1)
	trace := h.recorder.traces[0]
	assert.Equal(t, "I cannot help with that", trace.Parse.RawOutput)
	require.Len(t, trace.Errors, 1)
	assert.Equal(t, entities.StepParse, trace.Errors[0].Step)
	assert.Nil(t, trace.Retrieval)
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newSearchHarness(t)
	_, err := h.svc.Search(context.Background(), entities.SearchRequest{RawQuery: "   "})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	h.interpret.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSearch_UserLocation(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"prata","use_current_location":true}`)
	h.embedder.On("Embed", mock.Anything, "prata").Return([]float32{1}, nil)
	h.index.On("MatchStalls", mock.Anything, mock.Anything, 0.3, 50).Return([]repositories.VectorMatch{
		{Stall: at("far", "Far", farBugis), Similarity: 0.9},
		{Stall: at("near", "Near", nearBugis), Similarity: 0.5},
	}, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery:     "prata near me",
		UserLocation: &entities.Coordinates{Lat: 1.3008, Lng: 103.8558},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.SearchCenter)
	assert.Equal(t, entities.CenterSourceUser, resp.SearchCenter.Source)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "near", resp.Results[0].PlaceID)
	h.geocoder.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestSearch_UserLocationIgnoredWithoutIntent(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"prata","use_current_location":false}`)
	h.embedder.On("Embed", mock.Anything, "prata").Return([]float32{1}, nil)
	h.index.On("MatchStalls", mock.Anything, mock.Anything, 0.3, 50).Return([]repositories.VectorMatch{
		{Stall: at("far", "Far", farBugis), Similarity: 0.9},
	}, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery:     "prata",
		UserLocation: &entities.Coordinates{Lat: 1.3008, Lng: 103.8558},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.SearchCenter)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_Exclusions(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"noodles","exclusions":["beef"]}`)

	beef := at("beef", "Beef Kway Teow", nearBugis)
	dish := at("dish", "Noodle House", nearBugis)
	dish.RecommendedDishes = []string{"Beef Hor Fun"}
	ok := at("ok", "Fishball Noodles", nearBugis)

	h.repo.On("FetchOpenStalls", mock.Anything, mock.Anything).Return([]*entities.StallRecord{beef, dish, ok}, nil)
	h.rank.On("Complete", mock.Anything, mock.Anything).Return(`{"ranked_ids":[1],"reasoning":"only one"}`, nil)

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery: "noodles no beef",
		Options:  entities.SearchOptions{UseLLMRanking: true, Debug: true},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ok", resp.Results[0].PlaceID)
	assert.Equal(t, 2, resp.Trace.Filter.Excluded)
}

func TestSearch_StructuredFailureYieldsEmptyResults(t *testing.T) {
	h := newSearchHarness(t)
	h.intent(`{"food_query":"satay"}`)
	h.repo.On("FetchOpenStalls", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	resp, err := h.svc.Search(context.Background(), entities.SearchRequest{
		RawQuery: "satay",
		Options:  entities.SearchOptions{UseLLMRanking: true},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1, resp.TraceSummary.ErrorCount)
}

func TestGuidedSearch_CumulativePriceAndDistanceSort(t *testing.T) {
	h := newSearchHarness(t)
	h.repo.On("FetchOpenStalls", mock.Anything, repositories.StallFilter{
		Cuisine: "Chinese",
		Price:   "$$",
		Policy:  entities.GuidedPricePolicy,
	}).Return([]*entities.StallRecord{
		at("mid", "Mid", midBugis),
		at("near", "Near", nearBugis),
	}, nil)

	resp, err := h.svc.GuidedSearch(context.Background(), entities.GuidedSearchRequest{
		Cuisine:      "Chinese",
		Price:        "$$",
		LocationName: "bugis",
		SortBy:       entities.SortByDistance,
		Debug:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"near", "mid"}, []string{resp.Results[0].PlaceID, resp.Results[1].PlaceID})
	assert.Nil(t, resp.ParsedIntent)
	assert.Equal(t, entities.SearchKindGuided, resp.Trace.Kind)
	assert.Equal(t, "guided_cumulative", resp.Trace.Retrieval.PricePolicy)
	h.interpret.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGuidedSearch_RelevanceUsesHybridScore(t *testing.T) {
	h := newSearchHarness(t)
	h.embedder.On("Embed", mock.Anything, "laksa").Return([]float32{1}, nil)
	h.index.On("MatchStalls", mock.Anything, mock.Anything, 0.3, 50).Return([]repositories.VectorMatch{
		{Stall: at("near", "Near", nearBugis), Similarity: 0.4},
		{Stall: at("mid", "Mid", midBugis), Similarity: 0.95},
	}, nil)

	resp, err := h.svc.GuidedSearch(context.Background(), entities.GuidedSearchRequest{
		Query:        "laksa",
		UserLocation: &entities.Coordinates{Lat: 1.3008, Lng: 103.8558},
		SortBy:       entities.SortByRelevance,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "mid", resp.Results[0].PlaceID)
}

func TestGuidedSearch_Validation(t *testing.T) {
	h := newSearchHarness(t)

	_, err := h.svc.GuidedSearch(context.Background(), entities.GuidedSearchRequest{Price: "$$$$"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = h.svc.GuidedSearch(context.Background(), entities.GuidedSearchRequest{SortBy: "rating"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestFilterByDistance_Idempotent(t *testing.T) {
	center := entities.Coordinates{Lat: 1.3008, Lng: 103.8558}
	candidates := candidatesFor(at("far", "Far", farBugis), at("mid", "Mid", midBugis), at("near", "Near", nearBugis))

	once := FilterByDistance(candidates, center, 5)
	twice := FilterByDistance(once, center, 5)

	assert.Equal(t, []string{"near", "mid"}, candidateIDs(once, 0))
	assert.Equal(t, candidateIDs(once, 0), candidateIDs(twice, 0))
	for i := range once {
		assert.Equal(t, *once[i].Distance, *twice[i].Distance)
	}
}

func TestOrderByRanking(t *testing.T) {
	candidates := candidatesFor(stall("a", "A", 0, 0), stall("b", "B", 0, 0), stall("c", "C", 0, 0))
	ordered := OrderByRanking(candidates, []string{"c", "gone", "a", "c"}, 10)
	assert.Equal(t, []string{"c", "a"}, candidateIDs(ordered, 0))

	assert.Len(t, OrderByRanking(candidates, []string{"a", "b", "c"}, 2), 2)
}
