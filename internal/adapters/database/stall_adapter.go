package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/postgres"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
)

var stallColumns = []interface{}{
	"place_id", "name", "category", "cuisine", "affordability", "location",
	"operating_hours", "review_summary", "recommended_dishes", "source",
	"source_url", "date_published", "latitude", "longitude", "status",
}

// StallAdapter reads stalls from postgres. It serves both structured
// retrieval and pgvector similarity search through match_stalls.
type StallAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewStallAdapter creates a new stall adapter
func NewStallAdapter(client *postgres.Client) *StallAdapter {
	return &StallAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// likeEscaper escapes LIKE wildcards so a value only matches as a literal
// substring. Backslash is the default postgres LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

var (
	_ repositories.StallRepository  = (*StallAdapter)(nil)
	_ repositories.StallVectorIndex = (*StallAdapter)(nil)
)

// FetchOpenStalls returns open stalls, narrowed by cuisine substring and
// the filter's price buckets.
func (a *StallAdapter) FetchOpenStalls(ctx context.Context, filter repositories.StallFilter) ([]*entities.StallRecord, error) {
	conditions := []exp.Expression{
		goqu.Ex{"status": entities.StallStatusOpen},
	}
	if cuisine := strings.TrimSpace(filter.Cuisine); cuisine != "" {
		conditions = append(conditions, goqu.I("cuisine").ILike("%"+escapeLike(cuisine)+"%"))
	}
	if buckets := filter.PriceBuckets(); len(buckets) > 0 {
		conditions = append(conditions, goqu.Ex{"affordability": buckets})
	}

	query, args, err := a.db.Select(stallColumns...).
		From("stalls").
		Where(conditions...).
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stall query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to fetch open stalls", err)
	}
	defer rows.Close()

	stalls := make([]*entities.StallRecord, 0)
	for rows.Next() {
		stall, err := scanStall(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan stall", err)
		}
		stalls = append(stalls, stall)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate stalls", err)
	}

	return stalls, nil
}

// MatchStalls calls the match_stalls database function.
func (a *StallAdapter) MatchStalls(ctx context.Context, embedding []float32, threshold float64, limit int) ([]repositories.VectorMatch, error) {
	if len(embedding) == 0 {
		return nil, apperrors.NewValidationError("embedding is required")
	}

	columns := append(append([]interface{}{}, stallColumns...), "similarity")
	query, args, err := a.db.Select(columns...).
		From(goqu.L("match_stalls(?::vector, ?, ?)", vectorLiteral(embedding), threshold, limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build match query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to match stalls", err)
	}
	defer rows.Close()

	matches := make([]repositories.VectorMatch, 0)
	for rows.Next() {
		var similarity float64
		stall, err := scanStall(rows, &similarity)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan matched stall", err)
		}
		matches = append(matches, repositories.VectorMatch{Stall: stall, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate matched stalls", err)
	}

	return matches, nil
}

// vectorLiteral renders a pgvector text literal: [0.1,0.2,...]
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStall(row rowScanner, extra ...interface{}) (*entities.StallRecord, error) {
	stall := &entities.StallRecord{}
	var category, cuisine, affordability, location, hours, review sql.NullString
	var source, sourceURL, status sql.NullString
	var dishes pq.StringArray
	var published sql.NullTime
	var lat, lng sql.NullFloat64

	dest := []interface{}{
		&stall.PlaceID,
		&stall.Name,
		&category,
		&cuisine,
		&affordability,
		&location,
		&hours,
		&review,
		&dishes,
		&source,
		&sourceURL,
		&published,
		&lat,
		&lng,
		&status,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	stall.Category = category.String
	stall.Cuisine = cuisine.String
	stall.Affordability = affordability.String
	stall.Location = location.String
	stall.OperatingHours = hours.String
	stall.ReviewSummary = review.String
	stall.RecommendedDishes = []string(dishes)
	if stall.RecommendedDishes == nil {
		stall.RecommendedDishes = []string{}
	}
	stall.Source = source.String
	stall.SourceURL = sourceURL.String
	if published.Valid {
		t := published.Time
		stall.DatePublished = &t
	}
	stall.Latitude = lat.Float64
	stall.Longitude = lng.Float64
	stall.Status = status.String

	return stall, nil
}
