package repositories

import (
	"context"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
)

// StallFilter holds structured retrieval filters. Status is always open.
type StallFilter struct {
	Cuisine string
	Price   string
	Policy  entities.PricePolicy
}

// PriceBuckets resolves the price through the filter's policy.
func (f StallFilter) PriceBuckets() []string {
	if f.Policy == nil {
		return nil
	}
	return f.Policy.Buckets(f.Price)
}

// StallRepository defines the interface for stall data access
type StallRepository interface {
	// FetchOpenStalls returns open stalls matching the filter.
	FetchOpenStalls(ctx context.Context, filter StallFilter) ([]*entities.StallRecord, error)
}

// VectorMatch is a stall returned by similarity search.
type VectorMatch struct {
	Stall      *entities.StallRecord
	Similarity float64
}

// StallVectorIndex performs similarity search over stall embeddings.
type StallVectorIndex interface {
	// MatchStalls returns at most limit stalls whose similarity is above threshold.
	MatchStalls(ctx context.Context, embedding []float32, threshold float64, limit int) ([]VectorMatch, error)
}
