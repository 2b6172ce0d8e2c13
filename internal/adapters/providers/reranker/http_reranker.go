package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
)

const (
	rerankPath         = "/rerank"
	defaultHTTPTimeout = 15 * time.Second
)

// HTTPReranker calls a cross-encoder service exposing a /rerank endpoint
// (text-embeddings-inference or Cohere style).
type HTTPReranker struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPReranker creates a reranker client. A nil httpClient gets a default timeout.
func NewHTTPReranker(baseURL, apiKey, model string, httpClient *http.Client) *HTTPReranker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPReranker{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

// ModelName returns the configured model, if any.
func (r *HTTPReranker) ModelName() string {
	return r.model
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Rerank scores every document against the query. Results come back most
// relevant first; indexes outside the document list are rejected.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]providers.RerankScore, error) {
	if len(documents) == 0 {
		return []providers.RerankScore{}, nil
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+rerankPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// TEI answers with a bare array, Cohere wraps it in {"results": [...]}.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rerank response: %w", err)
	}
	var results []rerankResult
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &results)
	} else {
		var wrapped rerankResponse
		err = json.Unmarshal(trimmed, &wrapped)
		results = wrapped.Results
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]providers.RerankScore, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		var score float64
		switch {
		case res.RelevanceScore != nil:
			score = *res.RelevanceScore
		case res.Score != nil:
			score = *res.Score
		}
		scores = append(scores, providers.RerankScore{Index: res.Index, Score: score})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}
