package entities

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline steps as recorded in the trace
const (
	StepParse     = "parse"
	StepGeocode   = "geocode"
	StepRetrieval = "retrieval"
	StepFilter    = "filter"
	StepRanking   = "ranking"
	StepRerank    = "rerank"
)

// StageError is one entry of the append-only trace error log.
type StageError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ParseStage records query interpretation.
type ParseStage struct {
	RawQuery  string        `json:"raw_query"`
	RawOutput string        `json:"raw_output"`
	Intent    *ParsedIntent `json:"intent,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
}

// GeocodeStage records how the search center was chosen.
type GeocodeStage struct {
	Input     string        `json:"input,omitempty"`
	Mode      string        `json:"mode"` // geocoder, user, none
	Center    *SearchCenter `json:"center,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
}

// RetrievalStage records candidate retrieval.
type RetrievalStage struct {
	Mode        string `json:"mode"` // structured, semantic
	Query       string `json:"query,omitempty"`
	Cuisine     string `json:"cuisine,omitempty"`
	Price       string `json:"price,omitempty"`
	PricePolicy string `json:"price_policy,omitempty"`
	Count       int    `json:"count"`
	LatencyMs   int64  `json:"latency_ms"`
}

// FilterStage records distance and exclusion filtering.
type FilterStage struct {
	Center      *Coordinates `json:"center,omitempty"`
	RadiusKm    float64      `json:"radius_km"`
	InputCount  int          `json:"input_count"`
	OutputCount int          `json:"output_count"`
	Excluded    int          `json:"excluded"`
	LatencyMs   int64        `json:"latency_ms"`
}

// RankingStage records the ranking engine outcome.
type RankingStage struct {
	Engine         string   `json:"engine"`
	CandidateCount int      `json:"candidate_count"`
	RankedIDs      []string `json:"ranked_ids"`
	Reasoning      *string  `json:"reasoning,omitempty"`
	Reranked       bool     `json:"reranked"`
	LatencyMs      int64    `json:"latency_ms"`
}

// SearchTrace accumulates one request's pipeline record. It is created at
// the start of a search, passed explicitly to every stage and finalized once.
type SearchTrace struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"` // agent, guided
	RawQuery       string          `json:"raw_query"`
	Options        SearchOptions   `json:"options"`
	StartedAt      time.Time       `json:"started_at"`
	Parse          *ParseStage     `json:"parse,omitempty"`
	Geocode        *GeocodeStage   `json:"geocode,omitempty"`
	Retrieval      *RetrievalStage `json:"retrieval,omitempty"`
	Filter         *FilterStage    `json:"filter,omitempty"`
	Ranking        *RankingStage   `json:"ranking,omitempty"`
	Errors         []StageError    `json:"errors"`
	ResultCount    int             `json:"result_count"`
	TotalLatencyMs int64           `json:"total_latency_ms"`
	FinalizedAt    *time.Time      `json:"finalized_at,omitempty"`
}

// NewSearchTrace starts an empty trace.
func NewSearchTrace(kind, rawQuery string, opts SearchOptions, startedAt time.Time) *SearchTrace {
	return &SearchTrace{
		ID:        uuid.New().String(),
		Kind:      kind,
		RawQuery:  rawQuery,
		Options:   opts,
		StartedAt: startedAt,
		Errors:    []StageError{},
	}
}

// AddError appends to the error log. Nil errors and nil traces are ignored.
func (t *SearchTrace) AddError(step string, err error) {
	if t == nil || err == nil {
		return
	}
	t.Errors = append(t.Errors, StageError{Step: step, Message: err.Error()})
}

// Finalize computes totals. Only the first call has an effect.
func (t *SearchTrace) Finalize(resultCount int, now time.Time) {
	if t.FinalizedAt != nil {
		return
	}
	t.ResultCount = resultCount
	t.TotalLatencyMs = now.Sub(t.StartedAt).Milliseconds()
	t.FinalizedAt = &now
}

// TraceSummary is the compact trace view returned with every response.
type TraceSummary struct {
	ID             string           `json:"id"`
	TotalLatencyMs int64            `json:"total_latency_ms"`
	StageLatencies map[string]int64 `json:"stage_latencies_ms"`
	ResultCount    int              `json:"result_count"`
	ErrorCount     int              `json:"error_count"`
	Engine         string           `json:"engine,omitempty"`
}

// Summary returns the compact view of the trace.
func (t *SearchTrace) Summary() TraceSummary {
	latencies := map[string]int64{}
	if t.Parse != nil {
		latencies[StepParse] = t.Parse.LatencyMs
	}
	if t.Geocode != nil {
		latencies[StepGeocode] = t.Geocode.LatencyMs
	}
	if t.Retrieval != nil {
		latencies[StepRetrieval] = t.Retrieval.LatencyMs
	}
	if t.Filter != nil {
		latencies[StepFilter] = t.Filter.LatencyMs
	}
	summary := TraceSummary{
		ID:             t.ID,
		TotalLatencyMs: t.TotalLatencyMs,
		StageLatencies: latencies,
		ResultCount:    t.ResultCount,
		ErrorCount:     len(t.Errors),
	}
	if t.Ranking != nil {
		latencies[StepRanking] = t.Ranking.LatencyMs
		summary.Engine = t.Ranking.Engine
	}
	return summary
}
