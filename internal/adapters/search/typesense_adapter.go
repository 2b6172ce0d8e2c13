package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	tsclient "github.com/danielcwq/stall-finder/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// TypesenseAdapter implements stall vector search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements StallVectorIndex
var _ repositories.StallVectorIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a stall document together with its embedding
func (a *TypesenseAdapter) Index(ctx context.Context, stall *entities.StallRecord, embedding []float32) error {
	if stall == nil || stall.PlaceID == "" {
		return fmt.Errorf("stall with place id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required for stall %s", stall.PlaceID)
	}

	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, stallDocument(stall, embedding))
	if err != nil {
		return fmt.Errorf("failed to index stall %s: %w", stall.PlaceID, err)
	}
	return nil
}

// Delete removes a stall from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, placeID string) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Document(placeID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete stall %s from index: %w", placeID, err)
	}
	return nil
}

// MatchStalls runs a nearest-neighbour query. Typesense reports cosine
// distance, so similarity is 1 - distance and the threshold becomes a
// distance ceiling. The vector goes in a multi_search body because it is
// too long for a GET query string.
func (a *TypesenseAdapter) MatchStalls(ctx context.Context, embedding []float32, threshold float64, limit int) ([]repositories.VectorMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is required")
	}
	if limit <= 0 {
		limit = 10
	}

	searches := api.MultiSearchSearchesParameter{
		Searches: []api.MultiSearchCollectionParameters{
			{
				Collection:    a.client.Collection(),
				Q:             pointer.String("*"),
				VectorQuery:   pointer.String(vectorQuery(embedding, threshold, limit)),
				ExcludeFields: pointer.String("embedding"),
				PerPage:       pointer.Int(limit),
			},
		},
	}

	result, err := a.client.Client().MultiSearch.Perform(ctx, &api.MultiSearchParams{}, searches)
	if err != nil {
		return nil, fmt.Errorf("typesense vector search failed: %w", err)
	}

	matches := make([]repositories.VectorMatch, 0)
	if result == nil || len(result.Results) == 0 || result.Results[0].Hits == nil {
		return matches, nil
	}

	for _, hit := range *result.Results[0].Hits {
		if hit.Document == nil {
			continue
		}
		similarity := 0.0
		if hit.VectorDistance != nil {
			similarity = 1 - float64(*hit.VectorDistance)
		}
		if similarity <= threshold {
			continue
		}
		matches = append(matches, repositories.VectorMatch{
			Stall:      stallFromDocument(*hit.Document),
			Similarity: similarity,
		})
		if len(matches) == limit {
			break
		}
	}

	return matches, nil
}

func vectorQuery(embedding []float32, threshold float64, limit int) string {
	values := make([]string, len(embedding))
	for i, v := range embedding {
		values[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("embedding:([%s], k:%d, distance_threshold:%s)",
		strings.Join(values, ","), limit, strconv.FormatFloat(1-threshold, 'f', -1, 64))
}

func stallDocument(stall *entities.StallRecord, embedding []float32) map[string]interface{} {
	dishes := stall.RecommendedDishes
	if dishes == nil {
		dishes = []string{}
	}
	document := map[string]interface{}{
		"id":                 stall.PlaceID,
		"name":               stall.Name,
		"category":           stall.Category,
		"cuisine":            stall.Cuisine,
		"affordability":      stall.Affordability,
		"location":           stall.Location,
		"operating_hours":    stall.OperatingHours,
		"review_summary":     stall.ReviewSummary,
		"recommended_dishes": dishes,
		"source":             stall.Source,
		"source_url":         stall.SourceURL,
		"coordinates":        []float64{stall.Latitude, stall.Longitude},
		"status":             stall.Status,
		"embedding":          embedding,
	}
	if stall.DatePublished != nil {
		document["date_published"] = stall.DatePublished.Unix()
	}
	return document
}

// stallFromDocument rebuilds a stall from a search hit. Typesense returns
// loosely typed JSON, so every field is read defensively.
func stallFromDocument(doc map[string]interface{}) *entities.StallRecord {
	stall := &entities.StallRecord{
		PlaceID:           stringField(doc, "id"),
		Name:              stringField(doc, "name"),
		Category:          stringField(doc, "category"),
		Cuisine:           stringField(doc, "cuisine"),
		Affordability:     stringField(doc, "affordability"),
		Location:          stringField(doc, "location"),
		OperatingHours:    stringField(doc, "operating_hours"),
		ReviewSummary:     stringField(doc, "review_summary"),
		Source:            stringField(doc, "source"),
		SourceURL:         stringField(doc, "source_url"),
		Status:            stringField(doc, "status"),
		RecommendedDishes: []string{},
	}

	if raw, ok := doc["recommended_dishes"].([]interface{}); ok {
		for _, d := range raw {
			if s, ok := d.(string); ok {
				stall.RecommendedDishes = append(stall.RecommendedDishes, s)
			}
		}
	}
	if coords, ok := doc["coordinates"].([]interface{}); ok && len(coords) == 2 {
		stall.Latitude, _ = coords[0].(float64)
		stall.Longitude, _ = coords[1].(float64)
	}
	if ts, ok := doc["date_published"].(float64); ok {
		published := time.Unix(int64(ts), 0).UTC()
		stall.DatePublished = &published
	}

	return stall
}

func stringField(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
