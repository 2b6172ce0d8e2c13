package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielcwq/stall-finder/internal/adapters/cache"
	"github.com/danielcwq/stall-finder/internal/adapters/database"
	"github.com/danielcwq/stall-finder/internal/adapters/providers/geolocation"
	"github.com/danielcwq/stall-finder/internal/adapters/providers/reranker"
	"github.com/danielcwq/stall-finder/internal/adapters/search"
	"github.com/danielcwq/stall-finder/internal/api/handlers"
	"github.com/danielcwq/stall-finder/internal/api/routes"
	"github.com/danielcwq/stall-finder/internal/application/services"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/domain/repositories"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/openai"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/postgres"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/redis"
	"github.com/danielcwq/stall-finder/internal/infrastructure/clients/typesense"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/danielcwq/stall-finder/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	aiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenAI client")
	}

	// Query embeddings are cached in Redis when it is reachable
	var embedder providers.EmbeddingProvider = aiClient
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, query embeddings are not cached")
		} else {
			defer redisClient.Close()
			embedder = cache.NewCachedEmbeddingProvider(
				aiClient,
				cache.NewRedisAdapter(redisClient),
				cfg.OpenAI.EmbeddingModel,
				cfg.Search.EmbeddingCacheTTLSecs,
			)
			logger.Info().Msg("Query embedding cache enabled")
		}
	}

	stallAdapter := database.NewStallAdapter(pgClient)

	var vectorIndex repositories.StallVectorIndex = stallAdapter
	if cfg.Search.SemanticBackend == "typesense" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Typesense client")
		}
		if err := tsClient.InitSchema(ctx, cfg.OpenAI.EmbeddingDimensions); err != nil {
			logger.Warn().Err(err).Msg("Failed to init Typesense schema")
		}
		vectorIndex = search.NewTypesenseAdapter(tsClient)
	}
	logger.Info().Str("backend", cfg.Search.SemanticBackend).Msg("Semantic retrieval backend selected")

	var geocoder providers.GeocodingProvider
	if cfg.Geocoder.Enabled {
		geocoder = geolocation.NewOneMapProviderWithOptions(cfg.Geocoder.Token, cfg.Geocoder.BaseURL, nil)
	}

	var rerankProvider providers.RerankProvider
	if cfg.Reranker.Enabled && cfg.Reranker.URL != "" {
		rerankProvider = reranker.NewHTTPReranker(cfg.Reranker.URL, cfg.Reranker.APIKey, cfg.Reranker.Model, nil)
		logger.Info().Str("model", cfg.Reranker.Model).Msg("Reranker enabled")
	}

	var recorder services.TraceRecorder
	if cfg.Trace.Enabled {
		traceService, err := services.NewSearchTraceService(database.NewSearchTraceAdapter(pgClient), cfg.Trace.PoolSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize trace recorder")
		}
		defer func() {
			if err := traceService.Close(5 * time.Second); err != nil {
				logger.Warn().Err(err).Msg("Trace recorder did not drain in time")
			}
		}()
		recorder = traceService
	}

	searchService := services.NewSearchService(
		services.NewQueryInterpreterService(aiClient, cfg.OpenAI.ParseTemperature),
		services.NewLocationResolverService(geocoder, geolocation.NewSingaporeGazetteer()),
		services.NewCandidateStoreService(stallAdapter, vectorIndex, embedder, cfg.Search.MatchThreshold, cfg.Search.MatchCount),
		services.NewWeightedRankingService(cfg.Ranking, rerankProvider),
		services.NewLLMRankingService(aiClient, cfg.OpenAI.RankTemperature, cfg.Ranking.TopN),
		recorder,
		metrics,
		services.SearchSettings{
			RadiusKm:         cfg.Search.RadiusKm,
			TopN:             cfg.Ranking.TopN,
			LLMMaxCandidates: cfg.Ranking.LLMMaxCandidates,
		},
	)

	router := routes.NewRouter(handlers.NewSearchHandler(searchService), cfg.Server.AllowedOrigins, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// Searches make several sequential model calls and carry no timeout of their own
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	logger.Info().Msg("Server stopped")
}
