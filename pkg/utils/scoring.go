package utils

import (
	"math"
	"time"
)

const recencyDecayDays = 365.0

// RecencyScore decays exponentially with the age of the publication date:
// exp(-age_days/365). A missing date scores 0; future dates score 1.
func RecencyScore(published *time.Time, now time.Time) float64 {
	if published == nil || published.IsZero() {
		return 0
	}
	ageDays := now.Sub(*published).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / recencyDecayDays)
}

// SimilarityWeights blends similarity and recency into a score, higher is better.
type SimilarityWeights struct {
	Similarity float64
	Recency    float64
}

// AdjustedScore returns similarity*w.Similarity + recency*w.Recency.
func (w SimilarityWeights) AdjustedScore(similarity, recency float64) float64 {
	return similarity*w.Similarity + recency*w.Recency
}

// DistanceWeights shrink a distance by semantic and recency signals, lower is better.
type DistanceWeights struct {
	Semantic float64
	Recency  float64
}

// AdjustedDistance returns distance*(1 - semantic*w.Semantic - recency*w.Recency).
func (w DistanceWeights) AdjustedDistance(distanceKm, semantic, recency float64) float64 {
	return distanceKm * (1 - semantic*w.Semantic - recency*w.Recency)
}

// HybridWeights blend similarity, recency and proximity, higher is better.
type HybridWeights struct {
	Similarity float64
	Recency    float64
	Proximity  float64
}

// AdjustedScore uses 1/(1+distance_km) as the proximity signal.
func (w HybridWeights) AdjustedScore(similarity, recency, distanceKm float64) float64 {
	proximity := 1 / (1 + math.Max(distanceKm, 0))
	return similarity*w.Similarity + recency*w.Recency + proximity*w.Proximity
}
