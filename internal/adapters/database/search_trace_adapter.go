package database

import (
	"context"
	"encoding/json"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/postgres"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/doug-martin/goqu/v9"
)

// SearchTraceAdapter writes finalized traces to the search_traces table.
type SearchTraceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchTraceAdapter creates a new search trace adapter
func NewSearchTraceAdapter(client *postgres.Client) repositories.SearchTraceRepository {
	return &SearchTraceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Insert stores one trace. Stage records are stored as jsonb columns.
func (a *SearchTraceAdapter) Insert(ctx context.Context, trace *entities.SearchTrace) error {
	if trace == nil {
		return apperrors.NewValidationError("trace is required")
	}

	record := goqu.Record{
		"id":               trace.ID,
		"kind":             trace.Kind,
		"raw_query":        trace.RawQuery,
		"result_count":     trace.ResultCount,
		"total_latency_ms": trace.TotalLatencyMs,
		"started_at":       trace.StartedAt,
	}
	if trace.FinalizedAt != nil {
		record["finalized_at"] = *trace.FinalizedAt
	}

	jsonColumns := map[string]interface{}{
		"options":   trace.Options,
		"parse":     trace.Parse,
		"geocode":   trace.Geocode,
		"retrieval": trace.Retrieval,
		"filter":    trace.Filter,
		"ranking":   trace.Ranking,
		"errors":    trace.Errors,
	}
	for column, value := range jsonColumns {
		data, err := json.Marshal(value)
		if err != nil {
			return apperrors.NewSinkError("failed to encode trace "+column, err)
		}
		record[column] = string(data)
	}

	query, args, err := a.db.Insert("search_traces").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewSinkError("failed to insert search trace", err)
	}

	return nil
}
