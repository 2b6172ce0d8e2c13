package evaluation

import (
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
)

// Category groups golden queries by what they exercise.
type Category string

const (
	CategoryDish      Category = "dish"      // e.g. "laksa", "chicken rice"
	CategoryCuisine   Category = "cuisine"   // e.g. "peranakan food"
	CategoryLocation  Category = "location"  // e.g. "prata near bugis"
	CategoryPrice     Category = "price"     // e.g. "cheap dim sum"
	CategoryExclusion Category = "exclusion" // e.g. "noodles no beef"
)

// IsValid checks if the category is one of the defined constants.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDish, CategoryCuisine, CategoryLocation, CategoryPrice, CategoryExclusion:
		return true
	}
	return false
}

// GoldenQuery is a labeled query with the stalls a good answer contains.
// ForbiddenPlaceIDs must never appear, e.g. stalls an exclusion rules out.
type GoldenQuery struct {
	ID                string                `json:"id"`
	Query             string                `json:"query"`
	Category          Category              `json:"category"`
	UserLocation      *entities.Coordinates `json:"user_location,omitempty"`
	UseLLMRanking     bool                  `json:"use_llm_ranking"`
	ExpectedPlaceIDs  []string              `json:"expected_place_ids"`
	ForbiddenPlaceIDs []string              `json:"forbidden_place_ids,omitempty"`
	Difficulty        string                `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID     string        `json:"query_id"`
	Category    Category      `json:"category"`
	RecallAt10  float64       `json:"recall_at_10"`
	MRRAt10     float64       `json:"mrr_at_10"`
	ResultCount int           `json:"result_count"`
	Violations  []string      `json:"violations,omitempty"`
	TraceErrors int           `json:"trace_errors"`
	Latency     time.Duration `json:"latency_ns"`
	Err         string        `json:"error,omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
// Failed queries count toward the averages with zero scores.
type EvalSummary struct {
	TotalQueries    int                         `json:"total_queries"`
	FailedQueries   int                         `json:"failed_queries"`
	QueriesWithHits int                         `json:"queries_with_hits"`
	Violations      int                         `json:"violations"`
	AvgRecallAt10   float64                     `json:"avg_recall_at_10"`
	AvgMRRAt10      float64                     `json:"avg_mrr_at_10"`
	AvgLatency      time.Duration               `json:"avg_latency_ns"`
	ByCategory      map[Category]*CategoryStats `json:"by_category"`
	Results         []EvalResult                `json:"results"`
}

// CategoryStats holds metrics grouped by category.
type CategoryStats struct {
	Count         int     `json:"count"`
	AvgRecallAt10 float64 `json:"avg_recall_at_10"`
	AvgMRRAt10    float64 `json:"avg_mrr_at_10"`
}
