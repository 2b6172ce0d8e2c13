package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/danielcwq/stall-finder/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
)

// NoCandidatesReasoning is returned when nothing survives filtering.
const NoCandidatesReasoning = "No candidates to rank"

// Retrieval modes recorded on the trace
const (
	RetrievalStructured = "structured"
	RetrievalSemantic   = "semantic"
)

// Geocode modes recorded on the trace
const (
	GeocodeModeGeocoder = "geocoder"
	GeocodeModeUser     = "user"
	GeocodeModeNone     = "none"
)

// TraceRecorder receives finalized traces.
type TraceRecorder interface {
	Record(ctx context.Context, trace *entities.SearchTrace)
}

// SearchSettings holds the orchestrator's tunables.
type SearchSettings struct {
	RadiusKm         float64
	TopN             int
	LLMMaxCandidates int
}

// SearchService runs the search pipeline:
// parse, locate, retrieve, filter, rank, format.
type SearchService struct {
	interpreter *QueryInterpreterService
	resolver    *LocationResolverService
	store       *CandidateStoreService
	weighted    *WeightedRankingService
	llm         *LLMRankingService
	recorder    TraceRecorder
	metrics     *observability.Metrics
	settings    SearchSettings
	now         func() time.Time
}

// NewSearchService creates the orchestrator. recorder and metrics may be nil.
func NewSearchService(
	interpreter *QueryInterpreterService,
	resolver *LocationResolverService,
	store *CandidateStoreService,
	weighted *WeightedRankingService,
	llm *LLMRankingService,
	recorder TraceRecorder,
	metrics *observability.Metrics,
	settings SearchSettings,
) *SearchService {
	if settings.TopN <= 0 {
		settings.TopN = 10
	}
	if settings.LLMMaxCandidates <= 0 {
		settings.LLMMaxCandidates = 50
	}
	return &SearchService{
		interpreter: interpreter,
		resolver:    resolver,
		store:       store,
		weighted:    weighted,
		llm:         llm,
		recorder:    recorder,
		metrics:     metrics,
		settings:    settings,
		now:         time.Now,
	}
}

// Search answers a free-text query. Only query interpretation failures are
// returned as errors; every other stage degrades and records on the trace.
func (s *SearchService) Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error) {
	ctx, span := observability.StartSpan(ctx, "SearchService.Search")
	defer span.End()

	if strings.TrimSpace(req.RawQuery) == "" {
		return nil, apperrors.NewValidationError("query is required")
	}

	trace := entities.NewSearchTrace(entities.SearchKindAgent, req.RawQuery, req.Options, s.now())
	ctx = observability.WithSearchTrace(ctx, trace.ID)
	observability.SetSpanAttributes(span,
		attribute.String("trace.id", trace.ID),
		attribute.Bool("use_llm_ranking", req.Options.UseLLMRanking),
	)

	// PARSING
	intent, parseMs, rawOutput, err := s.interpreter.Interpret(ctx, req.RawQuery)
	trace.Parse = &entities.ParseStage{
		RawQuery:  req.RawQuery,
		RawOutput: rawOutput,
		Intent:    intent,
		LatencyMs: parseMs,
	}
	observability.RecordStageMetric(ctx, s.metrics, entities.StepParse, parseMs, false)
	if err != nil {
		observability.RecordError(span, err)
		trace.AddError(entities.StepParse, err)
		s.finish(ctx, trace, 0)
		return nil, err
	}

	// LOCATING
	var locationName string
	if intent.LocationName != nil {
		locationName = *intent.LocationName
	}
	center := s.locate(ctx, trace, locationName, intent.UseCurrentLocation, req.UserLocation)

	// RETRIEVING
	var candidates []*entities.Candidate
	if req.Options.UseLLMRanking {
		candidates = s.retrieveStructured(ctx, trace, repositories.StallFilter{
			Cuisine: intent.CuisineValue(),
			Price:   intent.PriceValue(),
			Policy:  entities.AgentPricePolicy,
		})
	} else {
		candidates = s.retrieveSemantic(ctx, trace, intent.FoodQuery, repositories.StallFilter{
			Cuisine: intent.CuisineValue(),
			Price:   intent.PriceValue(),
			Policy:  entities.AgentPricePolicy,
		})
	}

	// FILTERING
	candidates = s.filter(ctx, trace, candidates, center, intent.Exclusions)

	// RANKING
	var ranking *entities.RankingResult
	switch {
	case len(candidates) == 0:
		ranking = s.emptyRanking(trace, req.Options.UseLLMRanking)
	case req.Options.UseLLMRanking:
		ranking = s.rankLLM(ctx, trace, intent.FoodQuery, candidates)
	default:
		mode := ScoringSimilarity
		if center != nil {
			mode = ScoringDistance
		}
		ranking = s.rankWeighted(ctx, trace, intent.FoodQuery, candidates, mode, req.Options.UseRerank)
	}

	// DONE
	resp := s.done(ctx, trace, candidates, ranking, center, req.Options.Debug)
	resp.ParsedIntent = intent
	return resp, nil
}

// GuidedSearch answers a structured-filter search without query interpretation.
func (s *SearchService) GuidedSearch(ctx context.Context, req entities.GuidedSearchRequest) (*entities.SearchResponse, error) {
	ctx, span := observability.StartSpan(ctx, "SearchService.GuidedSearch")
	defer span.End()

	policy := entities.GuidedPricePolicy
	price := strings.TrimSpace(req.Price)
	if price != "" && policy.Buckets(price) == nil {
		return nil, apperrors.NewValidationError("price must be one of $, $$, $$$")
	}
	sortBy := strings.ToLower(strings.TrimSpace(req.SortBy))
	if sortBy != "" && sortBy != entities.SortByDistance && sortBy != entities.SortByRelevance {
		return nil, apperrors.NewValidationError("sort_by must be distance or relevance")
	}

	opts := entities.SearchOptions{UseRerank: req.UseRerank, Debug: req.Debug}
	trace := entities.NewSearchTrace(entities.SearchKindGuided, req.Query, opts, s.now())
	ctx = observability.WithSearchTrace(ctx, trace.ID)
	observability.SetSpanAttributes(span, attribute.String("trace.id", trace.ID))

	center := s.locate(ctx, trace, req.LocationName, req.UserLocation != nil, req.UserLocation)

	filter := repositories.StallFilter{Cuisine: req.Cuisine, Price: price, Policy: policy}
	query := strings.TrimSpace(req.Query)
	var candidates []*entities.Candidate
	if query != "" {
		candidates = s.retrieveSemantic(ctx, trace, query, filter)
	} else {
		candidates = s.retrieveStructured(ctx, trace, filter)
	}

	candidates = s.filter(ctx, trace, candidates, center, nil)

	var ranking *entities.RankingResult
	if len(candidates) == 0 {
		ranking = s.emptyRanking(trace, false)
	} else {
		mode := ScoringSimilarity
		if center != nil {
			mode = ScoringHybrid
			if sortBy == entities.SortByDistance || sortBy == "" {
				mode = ScoringDistance
			}
		}
		rerankQuery := query
		if rerankQuery == "" {
			rerankQuery = strings.TrimSpace(req.Cuisine)
		}
		ranking = s.rankWeighted(ctx, trace, rerankQuery, candidates, mode, req.UseRerank && rerankQuery != "")
	}

	return s.done(ctx, trace, candidates, ranking, center, req.Debug), nil
}

// locate picks the search center: a named place first, then the caller's
// coordinates when the query asks for them, otherwise none.
func (s *SearchService) locate(
	ctx context.Context,
	trace *entities.SearchTrace,
	locationName string,
	useCurrentLocation bool,
	userLocation *entities.Coordinates,
) *entities.SearchCenter {
	start := s.now()
	stage := &entities.GeocodeStage{Input: strings.TrimSpace(locationName), Mode: GeocodeModeNone}
	trace.Geocode = stage

	var center *entities.SearchCenter
	if stage.Input != "" {
		stage.Mode = GeocodeModeGeocoder
		if result := s.resolver.Resolve(ctx, stage.Input, trace); result != nil {
			center = &entities.SearchCenter{Lat: result.Lat, Lng: result.Lng, Source: result.Source, Label: result.Input}
		}
		stage.LatencyMs = s.now().Sub(start).Milliseconds()
	}

	if center == nil && useCurrentLocation && userLocation != nil {
		stage.Mode = GeocodeModeUser
		center = &entities.SearchCenter{
			Lat:    userLocation.Lat,
			Lng:    userLocation.Lng,
			Source: entities.CenterSourceUser,
			Label:  "current location",
		}
	}

	stage.Center = center
	observability.RecordStageMetric(ctx, s.metrics, entities.StepGeocode, stage.LatencyMs, false)
	return center
}

func (s *SearchService) retrieveStructured(ctx context.Context, trace *entities.SearchTrace, filter repositories.StallFilter) []*entities.Candidate {
	start := s.now()
	stage := &entities.RetrievalStage{
		Mode:        RetrievalStructured,
		Cuisine:     filter.Cuisine,
		Price:       filter.Price,
		PricePolicy: policyName(filter.Policy),
	}
	trace.Retrieval = stage

	candidates, err := s.store.FetchOpenStalls(ctx, filter)
	degraded := err != nil
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("structured retrieval failed")
		trace.AddError(entities.StepRetrieval, apperrors.NewDegradedError(entities.StepRetrieval, "structured retrieval failed", err))
		candidates = []*entities.Candidate{}
	}

	stage.Count = len(candidates)
	stage.LatencyMs = s.now().Sub(start).Milliseconds()
	observability.RecordStageMetric(ctx, s.metrics, entities.StepRetrieval, stage.LatencyMs, degraded)
	return candidates
}

// retrieveSemantic falls back to structured retrieval when the embedding or
// vector lookup fails. Fallback candidates carry zero similarity.
func (s *SearchService) retrieveSemantic(ctx context.Context, trace *entities.SearchTrace, text string, filter repositories.StallFilter) []*entities.Candidate {
	start := s.now()

	candidates, err := s.store.SemanticSearch(ctx, text, filter)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("semantic retrieval failed, falling back to structured")
		trace.AddError(entities.StepRetrieval, apperrors.NewDegradedError(entities.StepRetrieval, "semantic retrieval failed", err))
		fallback := s.retrieveStructured(ctx, trace, filter)
		trace.Retrieval.Query = text
		trace.Retrieval.LatencyMs = s.now().Sub(start).Milliseconds()
		return fallback
	}

	trace.Retrieval = &entities.RetrievalStage{
		Mode:        RetrievalSemantic,
		Query:       text,
		Cuisine:     filter.Cuisine,
		Price:       filter.Price,
		PricePolicy: policyName(filter.Policy),
		Count:       len(candidates),
		LatencyMs:   s.now().Sub(start).Milliseconds(),
	}
	observability.RecordStageMetric(ctx, s.metrics, entities.StepRetrieval, trace.Retrieval.LatencyMs, false)
	return candidates
}

func (s *SearchService) filter(
	ctx context.Context,
	trace *entities.SearchTrace,
	candidates []*entities.Candidate,
	center *entities.SearchCenter,
	exclusions []string,
) []*entities.Candidate {
	start := s.now()
	stage := &entities.FilterStage{RadiusKm: s.settings.RadiusKm, InputCount: len(candidates)}
	trace.Filter = stage

	out := candidates
	if center != nil {
		c := center.Coordinates()
		stage.Center = &c
		out = FilterByDistance(out, c, s.settings.RadiusKm)
	}
	before := len(out)
	out = FilterExclusions(out, exclusions)
	stage.Excluded = before - len(out)

	stage.OutputCount = len(out)
	stage.LatencyMs = s.now().Sub(start).Milliseconds()
	observability.RecordStageMetric(ctx, s.metrics, entities.StepFilter, stage.LatencyMs, false)
	return out
}

func (s *SearchService) emptyRanking(trace *entities.SearchTrace, useLLM bool) *entities.RankingResult {
	engine := entities.RankingEngineWeighted
	if useLLM {
		engine = entities.RankingEngineLLM
	}
	ranking := entities.NewRankingResult([]string{}, NoCandidatesReasoning)
	trace.Ranking = &entities.RankingStage{
		Engine:    engine,
		RankedIDs: ranking.RankedIDs,
		Reasoning: ranking.Reasoning,
		LatencyMs: 0,
	}
	return ranking
}

func (s *SearchService) rankLLM(ctx context.Context, trace *entities.SearchTrace, foodQuery string, candidates []*entities.Candidate) *entities.RankingResult {
	errorsBefore := len(trace.Errors)
	ranking, latency := s.llm.Rank(ctx, foodQuery, candidates, s.settings.LLMMaxCandidates, trace)
	trace.Ranking = &entities.RankingStage{
		Engine:         entities.RankingEngineLLM,
		CandidateCount: len(candidates),
		RankedIDs:      ranking.RankedIDs,
		Reasoning:      ranking.Reasoning,
		LatencyMs:      latency,
	}
	observability.RecordStageMetric(ctx, s.metrics, entities.StepRanking, latency, len(trace.Errors) > errorsBefore)
	return ranking
}

func (s *SearchService) rankWeighted(
	ctx context.Context,
	trace *entities.SearchTrace,
	query string,
	candidates []*entities.Candidate,
	mode ScoringMode,
	useRerank bool,
) *entities.RankingResult {
	start := s.now()
	errorsBefore := len(trace.Errors)
	ranking, reranked := s.weighted.Rank(ctx, query, candidates, mode, useRerank, trace)
	latency := s.now().Sub(start).Milliseconds()
	trace.Ranking = &entities.RankingStage{
		Engine:         entities.RankingEngineWeighted,
		CandidateCount: len(candidates),
		RankedIDs:      ranking.RankedIDs,
		Reasoning:      ranking.Reasoning,
		Reranked:       reranked,
		LatencyMs:      latency,
	}
	observability.RecordStageMetric(ctx, s.metrics, entities.StepRanking, latency, len(trace.Errors) > errorsBefore)
	return ranking
}

func (s *SearchService) done(
	ctx context.Context,
	trace *entities.SearchTrace,
	candidates []*entities.Candidate,
	ranking *entities.RankingResult,
	center *entities.SearchCenter,
	debug bool,
) *entities.SearchResponse {
	ordered := OrderByRanking(candidates, ranking.RankedIDs, s.settings.TopN)
	results := make([]entities.FormattedStall, 0, len(ordered))
	for _, c := range ordered {
		results = append(results, entities.FormatCandidate(c))
	}

	s.finish(ctx, trace, len(results))

	resp := &entities.SearchResponse{
		Results:      results,
		SearchCenter: center,
		Reasoning:    ranking.Reasoning,
		TraceSummary: trace.Summary(),
	}
	if debug {
		resp.Trace = trace
	}
	return resp
}

// finish finalizes the trace, logs it and hands it to the recorder.
func (s *SearchService) finish(ctx context.Context, trace *entities.SearchTrace, resultCount int) {
	trace.Finalize(resultCount, s.now())
	observability.RecordSearchResults(ctx, s.metrics, trace.Kind, resultCount)

	summary := trace.Summary()
	observability.LoggerFromContext(ctx).Info().
		Str("trace_id", trace.ID).
		Str("kind", trace.Kind).
		Int("results", resultCount).
		Int("errors", summary.ErrorCount).
		Int64("latency_ms", summary.TotalLatencyMs).
		Msg("search completed")

	if s.recorder != nil {
		s.recorder.Record(ctx, trace)
	}
}

// FilterByDistance sets Distance on every candidate, drops those beyond
// radiusKm and sorts the rest nearest first. Applying it twice with the same
// center and radius returns the same list.
func FilterByDistance(candidates []*entities.Candidate, center entities.Coordinates, radiusKm float64) []*entities.Candidate {
	out := make([]*entities.Candidate, 0, len(candidates))
	for _, c := range candidates {
		d := utils.HaversineKm(center.Lat, center.Lng, c.Stall.Latitude, c.Stall.Longitude)
		if d > radiusKm {
			continue
		}
		c.Distance = &d
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Distance < *out[j].Distance
	})
	return out
}

// FilterExclusions drops candidates whose name, cuisine or dishes mention
// any excluded term, case-insensitively.
func FilterExclusions(candidates []*entities.Candidate, exclusions []string) []*entities.Candidate {
	terms := make([]string, 0, len(exclusions))
	for _, e := range exclusions {
		if t := strings.ToLower(strings.TrimSpace(e)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return candidates
	}

	out := make([]*entities.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !mentionsAny(c.Stall, terms) {
			out = append(out, c)
		}
	}
	return out
}

func mentionsAny(stall *entities.StallRecord, terms []string) bool {
	fields := []string{strings.ToLower(stall.Name), strings.ToLower(stall.Cuisine)}
	for _, d := range stall.RecommendedDishes {
		fields = append(fields, strings.ToLower(d))
	}
	for _, t := range terms {
		for _, f := range fields {
			if strings.Contains(f, t) {
				return true
			}
		}
	}
	return false
}

// OrderByRanking returns the candidates named by ids in that order, skipping
// ids that are not present, capped at limit.
func OrderByRanking(candidates []*entities.Candidate, ids []string, limit int) []*entities.Candidate {
	byID := make(map[string]*entities.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.PlaceID()] = c
	}

	out := make([]*entities.Candidate, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func policyName(policy entities.PricePolicy) string {
	if policy == nil {
		return ""
	}
	return policy.Name()
}
