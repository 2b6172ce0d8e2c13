package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielcwq/stall-finder/internal/domain/entities"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	apperrors "github.com/danielcwq/stall-finder/pkg/errors"
)

// Searcher runs agent and guided searches.
type Searcher interface {
	Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error)
	GuidedSearch(ctx context.Context, req entities.GuidedSearchRequest) (*entities.SearchResponse, error)
}

// SearchHandler handles search HTTP requests
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// MaxRequestBodyBytes caps search request bodies.
const MaxRequestBodyBytes = 64 << 10

type searchRequestBody struct {
	Query         string                `json:"query"`
	UserLocation  *entities.Coordinates `json:"user_location"`
	UseLLMRanking bool                  `json:"use_llm_ranking"`
	UseRerank     bool                  `json:"use_rerank"`
	Debug         bool                  `json:"debug"`
}

type guidedSearchRequestBody struct {
	Query        string                `json:"query"`
	Cuisine      string                `json:"cuisine"`
	Price        string                `json:"price"`
	LocationName string                `json:"location_name"`
	UserLocation *entities.Coordinates `json:"user_location"`
	SortBy       string                `json:"sort_by"`
	UseRerank    bool                  `json:"use_rerank"`
	Debug        bool                  `json:"debug"`
}

// Search handles POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.searcher.Search(r.Context(), entities.SearchRequest{
		RawQuery:     body.Query,
		UserLocation: body.UserLocation,
		Options: entities.SearchOptions{
			UseLLMRanking: body.UseLLMRanking,
			UseRerank:     body.UseRerank,
			Debug:         body.Debug,
		},
	})
	if err != nil {
		respondWithSearchError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// GuidedSearch handles POST /api/search/guided
func (h *SearchHandler) GuidedSearch(w http.ResponseWriter, r *http.Request) {
	var body guidedSearchRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	resp, err := h.searcher.GuidedSearch(r.Context(), entities.GuidedSearchRequest{
		Query:        body.Query,
		Cuisine:      body.Cuisine,
		Price:        body.Price,
		LocationName: body.LocationName,
		UserLocation: body.UserLocation,
		SortBy:       body.SortBy,
		UseRerank:    body.UseRerank,
		Debug:        body.Debug,
	})
	if err != nil {
		respondWithSearchError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// decodeBody reads a capped JSON body into dst, writing 413 when the body is
// too large and 400 when it is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondWithSearchError exposes validation messages only. Every other
// failure gets one generic message.
func respondWithSearchError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeValidation {
		respondWithError(w, http.StatusBadRequest, appErr.Message)
		return
	}
	observability.LoggerFromContext(ctx).Error().Err(err).Msg("search failed")
	respondWithError(w, http.StatusInternalServerError, "search failed")
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("failed to write response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
