package entities

import "time"

// Search kinds
const (
	SearchKindAgent  = "agent"
	SearchKindGuided = "guided"
)

// Guided sort orders
const (
	SortByDistance  = "distance"
	SortByRelevance = "relevance"
)

// SearchOptions toggles optional pipeline behaviour.
type SearchOptions struct {
	UseLLMRanking bool `json:"use_llm_ranking"`
	UseRerank     bool `json:"use_rerank"`
	Debug         bool `json:"debug"`
}

// SearchRequest is a free-text search.
type SearchRequest struct {
	RawQuery     string
	UserLocation *Coordinates
	Options      SearchOptions
}

// GuidedSearchRequest is a structured-filter search that skips query interpretation.
type GuidedSearchRequest struct {
	Query        string
	Cuisine      string
	Price        string
	LocationName string
	UserLocation *Coordinates
	SortBy       string
	UseRerank    bool
	Debug        bool
}

// FormattedStall is the public view of a ranked stall.
type FormattedStall struct {
	PlaceID           string     `json:"place_id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	Cuisine           string     `json:"cuisine"`
	Affordability     string     `json:"affordability"`
	Location          string     `json:"location"`
	OperatingHours    string     `json:"operating_hours"`
	ReviewSummary     string     `json:"review_summary"`
	RecommendedDishes []string   `json:"recommended_dishes"`
	Source            string     `json:"source"`
	SourceURL         string     `json:"source_url"`
	DatePublished     *time.Time `json:"date_published,omitempty"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	DistanceKm        *float64   `json:"distance_km,omitempty"`
	Similarity        *float64   `json:"similarity,omitempty"`
	RerankScore       *float64   `json:"rerank_score,omitempty"`
}

// FormatCandidate projects a candidate onto its public fields.
func FormatCandidate(c *Candidate) FormattedStall {
	s := c.Stall
	dishes := s.RecommendedDishes
	if dishes == nil {
		dishes = []string{}
	}
	out := FormattedStall{
		PlaceID:           s.PlaceID,
		Name:              s.Name,
		Category:          s.Category,
		Cuisine:           s.Cuisine,
		Affordability:     s.Affordability,
		Location:          s.Location,
		OperatingHours:    s.OperatingHours,
		ReviewSummary:     s.ReviewSummary,
		RecommendedDishes: dishes,
		Source:            s.Source,
		SourceURL:         s.SourceURL,
		DatePublished:     s.DatePublished,
		Latitude:          s.Latitude,
		Longitude:         s.Longitude,
		DistanceKm:        c.Distance,
		RerankScore:       c.RerankScore,
	}
	if c.Similarity > 0 {
		sim := c.Similarity
		out.Similarity = &sim
	}
	return out
}

// SearchResponse is returned by both search kinds.
type SearchResponse struct {
	Results      []FormattedStall `json:"results"`
	ParsedIntent *ParsedIntent    `json:"parsed_intent"`
	SearchCenter *SearchCenter    `json:"search_center"`
	Reasoning    *string          `json:"reasoning,omitempty"`
	TraceSummary TraceSummary     `json:"trace_summary"`
	Trace        *SearchTrace     `json:"trace,omitempty"`
}
