package repositories

import (
	"context"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
)

// SearchTraceRepository persists finalized search traces.
type SearchTraceRepository interface {
	Insert(ctx context.Context, trace *entities.SearchTrace) error
}
