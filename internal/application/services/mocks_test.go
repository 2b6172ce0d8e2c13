package services

import (
	"context"
	"sync"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/stretchr/testify/mock"
)

type MockCompletionProvider struct {
	mock.Mock
}

func (m *MockCompletionProvider) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockGeocodingProvider struct {
	mock.Mock
}

func (m *MockGeocodingProvider) Geocode(ctx context.Context, placeName string) (*providers.GeocodedAddress, error) {
	args := m.Called(ctx, placeName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.GeocodedAddress), args.Error(1)
}

type MockRerankProvider struct {
	mock.Mock
}

func (m *MockRerankProvider) Rerank(ctx context.Context, query string, documents []string) ([]providers.RerankScore, error) {
	args := m.Called(ctx, query, documents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.RerankScore), args.Error(1)
}

type MockStallRepository struct {
	mock.Mock
}

func (m *MockStallRepository) FetchOpenStalls(ctx context.Context, filter repositories.StallFilter) ([]*entities.StallRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StallRecord), args.Error(1)
}

type MockStallVectorIndex struct {
	mock.Mock
}

func (m *MockStallVectorIndex) MatchStalls(ctx context.Context, embedding []float32, threshold float64, limit int) ([]repositories.VectorMatch, error) {
	args := m.Called(ctx, embedding, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repositories.VectorMatch), args.Error(1)
}

type MockSearchTraceRepository struct {
	mock.Mock
}

func (m *MockSearchTraceRepository) Insert(ctx context.Context, trace *entities.SearchTrace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}

// fakeRecorder keeps every recorded trace in memory.
type fakeRecorder struct {
	mu     sync.Mutex
	traces []*entities.SearchTrace
}

func (r *fakeRecorder) Record(_ context.Context, trace *entities.SearchTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, trace)
}

// fixedGazetteer resolves a fixed set of names.
type fixedGazetteer map[string]providers.Coordinates

func (g fixedGazetteer) Lookup(name string) (providers.GazetteerEntry, bool) {
	c, ok := g[name]
	if !ok {
		return providers.GazetteerEntry{}, false
	}
	return providers.GazetteerEntry{Name: name, Coordinates: c}, true
}

func stall(id, name string, lat, lng float64) *entities.StallRecord {
	return &entities.StallRecord{
		PlaceID:           id,
		Name:              name,
		Latitude:          lat,
		Longitude:         lng,
		Status:            entities.StallStatusOpen,
		RecommendedDishes: []string{},
	}
}

func candidatesFor(stalls ...*entities.StallRecord) []*entities.Candidate {
	return entities.NewCandidates(stalls)
}
