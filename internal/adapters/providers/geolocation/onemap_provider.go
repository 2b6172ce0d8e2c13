package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielcwq/stall-finder/internal/domain/providers"
)

const (
	oneMapBaseURL      = "https://www.onemap.gov.sg"
	oneMapSearchPath   = "/api/common/elastic/search"
	defaultHTTPTimeout = 8 * time.Second
)

// OneMapProvider implements the GeocodingProvider using the OneMap search API.
type OneMapProvider struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewOneMapProvider creates a new OneMap geocoding provider.
func NewOneMapProvider(token string) providers.GeocodingProvider {
	return NewOneMapProviderWithOptions(token, oneMapBaseURL, nil)
}

// NewOneMapProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewOneMapProviderWithOptions(token, baseURL string, httpClient *http.Client) providers.GeocodingProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = oneMapBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &OneMapProvider{
		token:      token,
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Geocode returns the first search result for the place name.
// Non-2xx responses and empty result sets are returned as errors.
func (p *OneMapProvider) Geocode(ctx context.Context, placeName string) (*providers.GeocodedAddress, error) {
	trimmed := strings.TrimSpace(placeName)
	if trimmed == "" {
		return nil, fmt.Errorf("place name is required")
	}

	params := url.Values{}
	params.Set("searchVal", trimmed)
	params.Set("returnGeom", "Y")
	params.Set("getAddrDetails", "Y")
	params.Set("pageNum", "1")

	reqURL := fmt.Sprintf("%s%s?%s", p.baseURL, oneMapSearchPath, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build onemap request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onemap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("onemap request returned status %d", resp.StatusCode)
	}

	var payload oneMapSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode onemap response: %w", err)
	}

	for _, result := range payload.Results {
		lat, latErr := strconv.ParseFloat(result.Latitude, 64)
		lng, lngErr := strconv.ParseFloat(result.Longitude, 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		return &providers.GeocodedAddress{
			FormattedAddress: result.Address,
			PostalCode:       result.Postal,
			Coordinates: providers.Coordinates{
				Latitude:  lat,
				Longitude: lng,
			},
		}, nil
	}

	return nil, providers.ErrNoGeocodeResults
}

type oneMapSearchResponse struct {
	Found         int                  `json:"found"`
	TotalNumPages int                  `json:"totalNumPages"`
	PageNum       int                  `json:"pageNum"`
	Results       []oneMapSearchResult `json:"results"`
}

type oneMapSearchResult struct {
	SearchValue string `json:"SEARCHVAL"`
	Address     string `json:"ADDRESS"`
	Postal      string `json:"POSTAL"`
	Latitude    string `json:"LATITUDE"`
	Longitude   string `json:"LONGITUDE"`
}
