package services

import (
	"context"
	"sort"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/danielcwq/stall-finder/pkg/config"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/danielcwq/stall-finder/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
)

// ScoringMode selects how the weighted engine orders candidates.
type ScoringMode string

const (
	// ScoringSimilarity sorts by adjusted_score, highest first.
	ScoringSimilarity ScoringMode = "similarity"
	// ScoringDistance sorts by adjusted_distance, lowest first.
	ScoringDistance ScoringMode = "distance"
	// ScoringHybrid blends similarity, recency and proximity, highest first.
	ScoringHybrid ScoringMode = "hybrid"
)

// Similarity profiles
const (
	ProfileBalanced      = "balanced"
	ProfileSemanticHeavy = "semantic_heavy"
)

// WeightedRankingService ranks candidates with fixed-weight formulas and an
// optional cross-encoder pass.
type WeightedRankingService struct {
	cfg      config.RankingConfig
	reranker providers.RerankProvider
	now      func() time.Time
}

// NewWeightedRankingService creates the engine. reranker may be nil.
func NewWeightedRankingService(cfg config.RankingConfig, reranker providers.RerankProvider) *WeightedRankingService {
	return &WeightedRankingService{
		cfg:      cfg,
		reranker: reranker,
		now:      time.Now,
	}
}

func (s *WeightedRankingService) similarityWeights() utils.SimilarityWeights {
	if s.cfg.SimilarityProfile == ProfileSemanticHeavy {
		return utils.SimilarityWeights{Similarity: s.cfg.SemanticHeavySim, Recency: s.cfg.SemanticHeavyRecency}
	}
	return utils.SimilarityWeights{Similarity: s.cfg.SimilarityWeight, Recency: s.cfg.RecencyWeight}
}

// Score fills RecencyScore and the mode's adjusted value on every candidate
// and returns them in ranked order. The input slice is not reordered.
func (s *WeightedRankingService) Score(candidates []*entities.Candidate, mode ScoringMode) []*entities.Candidate {
	now := s.now()
	sim := s.similarityWeights()
	dist := utils.DistanceWeights{Semantic: s.cfg.DistanceSemanticScale, Recency: s.cfg.DistanceRecencyScale}
	hybrid := utils.HybridWeights{Similarity: s.cfg.HybridSimilarity, Recency: s.cfg.HybridRecency, Proximity: s.cfg.HybridProximity}

	ranked := make([]*entities.Candidate, len(candidates))
	copy(ranked, candidates)

	for _, c := range ranked {
		c.RecencyScore = utils.RecencyScore(c.Stall.DatePublished, now)
		switch mode {
		case ScoringDistance:
			if c.Distance != nil {
				c.AdjustedDistance = dist.AdjustedDistance(*c.Distance, c.Similarity, c.RecencyScore)
			}
		case ScoringHybrid:
			if c.Distance != nil {
				c.AdjustedScore = hybrid.AdjustedScore(c.Similarity, c.RecencyScore, *c.Distance)
			} else {
				c.AdjustedScore = sim.AdjustedScore(c.Similarity, c.RecencyScore)
			}
		default:
			c.AdjustedScore = sim.AdjustedScore(c.Similarity, c.RecencyScore)
		}
	}

	if mode == ScoringDistance {
		sort.SliceStable(ranked, func(i, j int) bool {
			a, b := ranked[i], ranked[j]
			if a.Distance == nil || b.Distance == nil {
				return a.Distance != nil && b.Distance == nil
			}
			return a.AdjustedDistance < b.AdjustedDistance
		})
	} else {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].AdjustedScore > ranked[j].AdjustedScore
		})
	}

	return ranked
}

// Rank scores the candidates and returns the top N ids. With useRerank the
// top RerankPoolSize scored candidates are re-ordered by the cross-encoder;
// if that fails the pre-rerank order is kept and the failure is recorded on
// the trace. The second return value reports whether the rerank applied.
func (s *WeightedRankingService) Rank(
	ctx context.Context,
	query string,
	candidates []*entities.Candidate,
	mode ScoringMode,
	useRerank bool,
	trace *entities.SearchTrace,
) (*entities.RankingResult, bool) {
	ctx, span := observability.StartSpan(ctx, "WeightedRankingService.Rank")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("mode", string(mode)),
		attribute.Int("candidates", len(candidates)),
	)

	ranked := s.Score(candidates, mode)
	top := s.cfg.TopN

	if useRerank && len(ranked) > 0 {
		if s.reranker == nil {
			observability.LoggerFromContext(ctx).Debug().Msg("rerank requested but no reranker is configured")
		} else {
			reranked, err := s.rerank(ctx, query, ranked)
			if err == nil {
				return entities.NewRankingResult(candidateIDs(reranked, top), ""), true
			}
			observability.RecordError(span, err)
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("rerank failed, keeping weighted order")
			trace.AddError(entities.StepRerank, apperrors.NewDegradedError(entities.StepRerank, "cross-encoder rerank failed", err))
		}
	}

	return entities.NewRankingResult(candidateIDs(ranked, top), ""), false
}

func (s *WeightedRankingService) rerank(ctx context.Context, query string, ranked []*entities.Candidate) ([]*entities.Candidate, error) {
	pool := ranked
	if s.cfg.RerankPoolSize > 0 && len(pool) > s.cfg.RerankPoolSize {
		pool = pool[:s.cfg.RerankPoolSize]
	}

	documents := make([]string, len(pool))
	for i, c := range pool {
		documents[i] = c.Stall.SearchText()
	}

	scores, err := s.reranker.Rerank(ctx, query, documents)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, apperrors.NewExternalError("reranker returned no scores", nil)
	}

	for _, sc := range scores {
		if sc.Index < 0 || sc.Index >= len(pool) {
			return nil, apperrors.NewExternalError("reranker returned an unknown index", nil)
		}
	}

	out := make([]*entities.Candidate, 0, len(scores))
	seen := make(map[int]struct{}, len(scores))
	for _, sc := range scores {
		if _, dup := seen[sc.Index]; dup {
			continue
		}
		seen[sc.Index] = struct{}{}
		score := sc.Score
		c := pool[sc.Index]
		c.RerankScore = &score
		out = append(out, c)
	}
	return out, nil
}

func candidateIDs(candidates []*entities.Candidate, limit int) []string {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.PlaceID())
	}
	return ids
}
