package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/postgres"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinalizedTrace() *entities.SearchTrace {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	trace := entities.NewSearchTrace(entities.SearchKindAgent, "cheap laksa", entities.SearchOptions{Debug: true}, start)
	trace.Parse = &entities.ParseStage{RawQuery: "cheap laksa", LatencyMs: 120}
	trace.AddError(entities.StepGeocode, errors.New("onemap returned 429"))
	trace.Finalize(3, start.Add(900*time.Millisecond))
	return trace
}

func TestSearchTraceAdapter_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewSearchTraceAdapter(postgres.NewClientFromDB(db))
	trace := newFinalizedTrace()

	mock.ExpectExec(`INSERT INTO "search_traces" .*` + trace.ID + `.*cheap laksa`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, adapter.Insert(context.Background(), trace))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchTraceAdapter_InsertKeepsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewSearchTraceAdapter(postgres.NewClientFromDB(db))

	mock.ExpectExec(`INSERT INTO "search_traces"`).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "search_traces" does not exist`})

	err = adapter.Insert(context.Background(), newFinalizedTrace())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSink))

	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, "42P01", string(pqErr.Code))
}

func TestSearchTraceAdapter_NilTrace(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewSearchTraceAdapter(postgres.NewClientFromDB(db))
	assert.Error(t, adapter.Insert(context.Background(), nil))
}
