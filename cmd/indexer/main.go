package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielcwq/stall-finder/internal/adapters/database"
	"github.com/danielcwq/stall-finder/internal/adapters/search"
	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/openai"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/postgres"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/typesense"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/danielcwq/stall-finder/pkg/config"
)

// stallIndexer is the write side of the Typesense stall collection.
type stallIndexer interface {
	Index(ctx context.Context, stall *entities.StallRecord, embedding []float32) error
}

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("stall-indexer", cfg.Environment, cfg.LogLevel)
	logger := observability.GetLogger()

	interval, err := parseInterval(intervalFlag, os.Getenv("REINDEX_INTERVAL"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid interval")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			logger.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		logger.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			logger.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

// parseInterval prefers the flag over the environment. Empty means run once.
func parseInterval(flagValue, envValue string) (time.Duration, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = strings.TrimSpace(envValue)
	}
	if value == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", value, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be greater than zero")
	}
	return interval, nil
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	aiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		return err
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		logger.Info().Str("collection", tsClient.Collection()).Msg("Reset requested, deleting collection")
		if err := tsClient.DropCollection(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx, cfg.OpenAI.EmbeddingDimensions); err != nil {
		return err
	}

	stalls, err := database.NewStallAdapter(pgClient).FetchOpenStalls(ctx, repositories.StallFilter{})
	if err != nil {
		return err
	}

	indexed, failed := indexStalls(ctx, stalls, aiClient, search.NewTypesenseAdapter(tsClient))
	logger.Info().Int("indexed", indexed).Int("failed", failed).Msg("Indexing complete")
	return nil
}

// indexStalls embeds each stall's search text and upserts it. Per-stall
// failures are logged and counted; the run continues.
func indexStalls(ctx context.Context, stalls []*entities.StallRecord, embedder providers.EmbeddingProvider, indexer stallIndexer) (indexed, failed int) {
	logger := observability.GetLogger()

	for _, s := range stalls {
		if ctx.Err() != nil {
			break
		}
		if s == nil || s.PlaceID == "" {
			continue
		}

		embedding := s.Embedding
		if len(embedding) == 0 {
			var err error
			embedding, err = embedder.Embed(ctx, s.SearchText())
			if err != nil {
				logger.Warn().Err(err).Str("place_id", s.PlaceID).Msg("Failed to embed stall")
				failed++
				continue
			}
		}

		if err := indexer.Index(ctx, s, embedding); err != nil {
			logger.Warn().Err(err).Str("place_id", s.PlaceID).Msg("Failed to index stall")
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed
}
