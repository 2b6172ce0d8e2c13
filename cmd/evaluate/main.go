package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/evaluation"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
)

// httpSearcher runs searches against a running API server.
type httpSearcher struct {
	baseURL string
	client  *http.Client
}

type searchBody struct {
	Query         string                `json:"query"`
	UserLocation  *entities.Coordinates `json:"user_location,omitempty"`
	UseLLMRanking bool                  `json:"use_llm_ranking"`
}

func (s *httpSearcher) Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error) {
	payload, err := json.Marshal(searchBody{
		Query:         req.RawQuery,
		UserLocation:  req.UserLocation,
		UseLLMRanking: req.Options.UseLLMRanking,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, body.Error)
	}

	var out entities.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

func main() {
	var goldenPath, baseURL string
	var minRecall float64
	flag.StringVar(&goldenPath, "golden", "golden_queries.json", "golden query set")
	flag.StringVar(&baseURL, "addr", "http://localhost:8080", "API base URL")
	flag.Float64Var(&minRecall, "min-recall", 0, "exit non-zero when average Recall@10 falls below this")
	flag.Parse()

	observability.InitLogger("stall-evaluate", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	logger := observability.GetLogger()

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load golden queries")
	}

	searcher := &httpSearcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
	summary := evaluation.NewRunner(searcher).Run(context.Background(), queries)

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.AvgRecallAt10 < minRecall || summary.Violations > 0 {
		logger.Error().
			Float64("avg_recall_at_10", summary.AvgRecallAt10).
			Int("violations", summary.Violations).
			Msg("Evaluation below threshold")
		os.Exit(1)
	}
}
