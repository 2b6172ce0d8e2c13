package entities

import (
	"time"
)

// Stall statuses
const (
	StallStatusOpen   = "open"
	StallStatusClosed = "closed"
)

// Affordability buckets stored on stall records
const (
	AffordabilityAffordable = "affordable"
	AffordabilityMidRange   = "mid-range"
	AffordabilityPremium    = "premium"
)

// StallRecord is an immutable snapshot of a food stall as stored in the
// relational store.
type StallRecord struct {
	PlaceID           string     `json:"place_id" db:"place_id"`
	Name              string     `json:"name" db:"name"`
	Category          string     `json:"category" db:"category"`
	Cuisine           string     `json:"cuisine" db:"cuisine"`
	Affordability     string     `json:"affordability" db:"affordability"`
	Location          string     `json:"location" db:"location"`
	OperatingHours    string     `json:"operating_hours" db:"operating_hours"`
	ReviewSummary     string     `json:"review_summary" db:"review_summary"`
	RecommendedDishes []string   `json:"recommended_dishes" db:"recommended_dishes"`
	Source            string     `json:"source" db:"source"`
	SourceURL         string     `json:"source_url" db:"source_url"`
	DatePublished     *time.Time `json:"date_published,omitempty" db:"date_published"`
	Latitude          float64    `json:"latitude" db:"latitude"`
	Longitude         float64    `json:"longitude" db:"longitude"`
	Status            string     `json:"status" db:"status"`
	Embedding         []float32  `json:"-" db:"embedding"`
}

// IsOpen reports whether the stall is currently trading.
func (s *StallRecord) IsOpen() bool {
	return s.Status == StallStatusOpen
}

// SearchText is the text used for embeddings and cross-encoder documents.
func (s *StallRecord) SearchText() string {
	text := s.Name
	if s.Cuisine != "" {
		text += ". " + s.Cuisine
	}
	if s.Category != "" {
		text += " " + s.Category
	}
	for i, dish := range s.RecommendedDishes {
		if i == 0 {
			text += ". Dishes: " + dish
			continue
		}
		text += ", " + dish
	}
	if s.ReviewSummary != "" {
		text += ". " + s.ReviewSummary
	}
	return text
}

// Candidate wraps a stall admitted to ranking with the request-scoped
// scores computed for it. None of these values are written back to the store.
type Candidate struct {
	Stall            *StallRecord
	Distance         *float64
	Similarity       float64
	RecencyScore     float64
	AdjustedScore    float64
	AdjustedDistance float64
	RerankScore      *float64
}

// NewCandidates wraps stall records without any computed scores.
func NewCandidates(stalls []*StallRecord) []*Candidate {
	candidates := make([]*Candidate, 0, len(stalls))
	for _, stall := range stalls {
		if stall == nil {
			continue
		}
		candidates = append(candidates, &Candidate{Stall: stall})
	}
	return candidates
}

// PlaceID returns the wrapped stall identity.
func (c *Candidate) PlaceID() string {
	return c.Stall.PlaceID
}
