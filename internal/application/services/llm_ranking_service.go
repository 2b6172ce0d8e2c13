package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/domain/providers"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Fallback reasoning strings
const (
	ReasoningRankingError   = "ranking error"
	ReasoningCouldNotParse  = "could not parse ranking"
	ReasoningJSONParseError = "JSON parse error"
)

const (
	nameMatchBonus      = 100
	minBoostWordLength  = 3
	reviewExcerptLength = 200
)

const rankSystemPrompt = `You rank food stalls for a search query in Singapore.
You are given the query and a numbered list of candidate stalls.
Choose the stalls that best match what the user is looking for, best first.
Respond with a single JSON object and nothing else:
{"ranked_ids": [numbers from the list, best first, at most 10], "reasoning": "one or two sentences"}`

// LLMRankingService asks a language model to order candidates.
type LLMRankingService struct {
	completion  providers.CompletionProvider
	temperature float32
	topN        int
}

// NewLLMRankingService creates the engine.
func NewLLMRankingService(completion providers.CompletionProvider, temperature float64, topN int) *LLMRankingService {
	if topN <= 0 {
		topN = 10
	}
	return &LLMRankingService{
		completion:  completion,
		temperature: float32(temperature),
		topN:        topN,
	}
}

// Rank pre-boosts name matches, sends at most maxCandidates to the model and
// maps the returned 1-indexed positions back to place ids. Every failure
// falls back to the pre-boosted order with a fixed reasoning string and is
// recorded on the trace. The second value is the model latency in ms.
func (s *LLMRankingService) Rank(
	ctx context.Context,
	foodQuery string,
	candidates []*entities.Candidate,
	maxCandidates int,
	trace *entities.SearchTrace,
) (*entities.RankingResult, int64) {
	if len(candidates) == 0 {
		return entities.NewRankingResult([]string{}, ""), 0
	}

	ctx, span := observability.StartSpan(ctx, "LLMRankingService.Rank")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	boosted := PreBoost(foodQuery, candidates)
	if maxCandidates > 0 && len(boosted) > maxCandidates {
		boosted = boosted[:maxCandidates]
	}
	observability.SetSpanAttributes(span, attribute.Int("candidates", len(boosted)))

	fallback := func(reason string, err error) *entities.RankingResult {
		observability.RecordError(span, err)
		logger.Warn().Err(err).Str("reasoning", reason).Msg("llm ranking fell back to pre-boosted order")
		trace.AddError(entities.StepRanking, apperrors.NewDegradedError(entities.StepRanking, reason, err))
		return entities.NewRankingResult(candidateIDs(boosted, s.topN), reason)
	}

	start := time.Now()
	output, err := s.completion.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: rankSystemPrompt,
		UserMessage:  buildRankPrompt(foodQuery, boosted),
		Temperature:  s.temperature,
		MaxTokens:    800,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return fallback(ReasoningRankingError, err), latency
	}

	positions, reasoning, err := decodeRanking(output)
	if err != nil {
		return fallback(ReasoningJSONParseError, err), latency
	}

	ids := make([]string, 0, s.topN)
	seen := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if p < 1 || p > len(boosted) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		ids = append(ids, boosted[p-1].PlaceID())
		if len(ids) == s.topN {
			break
		}
	}
	if len(ids) == 0 {
		return fallback(ReasoningCouldNotParse, fmt.Errorf("no valid positions in %q", truncateRunes(output, 100))), latency
	}

	return entities.NewRankingResult(ids, reasoning), latency
}

// PreBoost moves candidates whose name matches the query to the front.
// Each query word longer than two characters found in the name adds its
// length; the whole query found in the name adds 100. Boosted candidates are
// ordered by descending score, ties and the rest keep their input order.
func PreBoost(query string, candidates []*entities.Candidate) []*entities.Candidate {
	q := strings.ToLower(strings.TrimSpace(query))
	var words []string
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) >= minBoostWordLength {
			words = append(words, w)
		}
	}

	type scored struct {
		c     *entities.Candidate
		score int
	}
	boosted := make([]scored, 0)
	rest := make([]*entities.Candidate, 0, len(candidates))
	for _, c := range candidates {
		name := strings.ToLower(c.Stall.Name)
		score := 0
		for _, w := range words {
			if strings.Contains(name, w) {
				score += utf8.RuneCountInString(w)
			}
		}
		if q != "" && strings.Contains(name, q) {
			score += nameMatchBonus
		}
		if score > 0 {
			boosted = append(boosted, scored{c: c, score: score})
		} else {
			rest = append(rest, c)
		}
	}

	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].score > boosted[j].score
	})

	out := make([]*entities.Candidate, 0, len(candidates))
	for _, b := range boosted {
		out = append(out, b.c)
	}
	return append(out, rest...)
}

func buildRankPrompt(query string, candidates []*entities.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nCandidates:\n", query)
	for i, c := range candidates {
		s := c.Stall
		fmt.Fprintf(&b, "%d. %s", i+1, s.Name)
		if s.Category != "" {
			fmt.Fprintf(&b, " | category: %s", s.Category)
		}
		if s.Cuisine != "" {
			fmt.Fprintf(&b, " | cuisine: %s", s.Cuisine)
		}
		if c.Distance != nil {
			fmt.Fprintf(&b, " | distance: %.1f km", *c.Distance)
		}
		if s.Affordability != "" {
			fmt.Fprintf(&b, " | price: %s", s.Affordability)
		}
		if len(s.RecommendedDishes) > 0 {
			fmt.Fprintf(&b, " | dishes: %s", strings.Join(s.RecommendedDishes, ", "))
		}
		if s.ReviewSummary != "" {
			fmt.Fprintf(&b, " | review: %s", truncateRunes(s.ReviewSummary, reviewExcerptLength))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// decodeRanking reads {ranked_ids, reasoning}. Positions may come back as
// numbers or numeric strings; anything else is skipped. Only output that is
// not a JSON object is an error; a ranked_ids of the wrong shape yields no
// positions.
func decodeRanking(output string) ([]int, string, error) {
	var payload struct {
		RankedIDs interface{} `json:"ranked_ids"`
		Reasoning interface{} `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(output)), &payload); err != nil {
		return nil, "", err
	}

	items, _ := payload.RankedIDs.([]interface{})
	positions := make([]int, 0, len(items))
	for _, raw := range items {
		switch v := raw.(type) {
		case float64:
			if v == float64(int(v)) {
				positions = append(positions, int(v))
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				positions = append(positions, n)
			}
		}
	}

	reasoning, _ := coerceString(payload.Reasoning)
	return positions, reasoning, nil
}

func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
