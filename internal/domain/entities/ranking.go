package entities

// Ranking engines
const (
	RankingEngineWeighted = "weighted"
	RankingEngineLLM      = "llm"
)

// RankingResult orders a subset of the candidates passed to an engine,
// most relevant first. RankedIDs never contains duplicates.
type RankingResult struct {
	RankedIDs []string `json:"ranked_ids"`
	Reasoning *string  `json:"reasoning"`
}

// NewRankingResult builds a result with an optional reasoning string.
func NewRankingResult(ids []string, reasoning string) *RankingResult {
	if ids == nil {
		ids = []string{}
	}
	result := &RankingResult{RankedIDs: ids}
	if reasoning != "" {
		result.Reasoning = &reasoning
	}
	return result
}

// ReasoningValue returns the reasoning or an empty string.
func (r *RankingResult) ReasoningValue() string {
	if r == nil || r.Reasoning == nil {
		return ""
	}
	return *r.Reasoning
}
