package services

import (
	"context"
	"slices"
	"strings"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// CandidateStoreService retrieves candidate stalls, either by structured
// filters or by embedding similarity.
type CandidateStoreService struct {
	stalls    repositories.StallRepository
	index     repositories.StallVectorIndex
	embedder  providers.EmbeddingProvider
	threshold float64
	limit     int
}

// NewCandidateStoreService creates a new candidate store.
func NewCandidateStoreService(
	stalls repositories.StallRepository,
	index repositories.StallVectorIndex,
	embedder providers.EmbeddingProvider,
	threshold float64,
	limit int,
) *CandidateStoreService {
	return &CandidateStoreService{
		stalls:    stalls,
		index:     index,
		embedder:  embedder,
		threshold: threshold,
		limit:     limit,
	}
}

// FetchOpenStalls returns open stalls matching the filter as unscored candidates.
func (s *CandidateStoreService) FetchOpenStalls(ctx context.Context, filter repositories.StallFilter) ([]*entities.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "CandidateStoreService.FetchOpenStalls")
	defer span.End()

	stalls, err := s.stalls.FetchOpenStalls(ctx, filter)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.SetSpanAttributes(span, attribute.Int("candidates", len(stalls)))
	return entities.NewCandidates(stalls), nil
}

// SemanticSearch embeds the text and returns stalls above the similarity
// threshold, then applies the structured filter in memory. Closed stalls are
// always dropped.
func (s *CandidateStoreService) SemanticSearch(ctx context.Context, text string, filter repositories.StallFilter) ([]*entities.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "CandidateStoreService.SemanticSearch")
	defer span.End()

	if s.embedder == nil || s.index == nil {
		return nil, apperrors.NewInternalError("semantic search is not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("semantic search text is empty")
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewExternalError("failed to embed query", err)
	}

	matches, err := s.index.MatchStalls(ctx, embedding, s.threshold, s.limit)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	cuisine := strings.ToLower(strings.TrimSpace(filter.Cuisine))
	buckets := filter.PriceBuckets()

	candidates := make([]*entities.Candidate, 0, len(matches))
	for _, m := range matches {
		if m.Stall == nil || !m.Stall.IsOpen() {
			continue
		}
		if cuisine != "" && !strings.Contains(strings.ToLower(m.Stall.Cuisine), cuisine) {
			continue
		}
		if len(buckets) > 0 && !slices.Contains(buckets, m.Stall.Affordability) {
			continue
		}
		candidates = append(candidates, &entities.Candidate{Stall: m.Stall, Similarity: m.Similarity})
	}

	observability.SetSpanAttributes(span,
		attribute.Int("matches", len(matches)),
		attribute.Int("candidates", len(candidates)),
	)
	return candidates, nil
}
