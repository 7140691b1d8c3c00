package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client looks up docking stations by name with the Mapbox Geocoding API.
// It serves station backfill as a domain.Geocoder.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Client whose lookups give up after timeout.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ForwardGeocode resolves a station query such as "Albert Gate, Hyde Park,
// London" to the coordinates of the best match. No match returns a zero
// result and no error.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	start := time.Now()
	result, err := c.lookup(ctx, c.stationURL(query))
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		c.logger.Debug("station lookup failed", "query", query, "error", err)
	case result.FormattedAddress == "":
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	return result, err
}

// stationURL asks for a single best match among the place types a docking
// station name can resolve to.
func (c *Client) stationURL(query string) string {
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"poi,address,neighborhood,locality,place"},
	}
	return c.baseURL + "/" + url.PathEscape(query) + ".json?" + params.Encode()
}

func (c *Client) lookup(ctx context.Context, target string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("build station lookup: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("station lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("station lookup: mapbox status %d: %s", resp.StatusCode, body)
	}

	var places response
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}
	return places.Features[0].result(), nil
}

// response is the subset of a Mapbox places response the lookup reads.
type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) result() domain.GeocodingResult {
	r := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		r.Lon, r.Lat = f.Center[0], f.Center[1]
	}
	return r
}
