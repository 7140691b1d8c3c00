package mapbox

import (
	"context"
	"strings"

	"github.com/bluele/gcache"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by the
// normalized query. The cache lives for one process. Station backfill already
// looks up each missing station id once per run, so within a run the cache
// only saves calls for distinct ids that share a name, as happens when a dock
// is renumbered; it starts empty on every run and is never persisted.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   gcache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   gcache.New(maxEntries).LRU().Build(),
		metrics: metrics,
	}
}

// ForwardGeocode returns the cached result for query, calling the wrapped
// geocoder on a miss. Errors and empty results are not cached.
func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := cacheKey(query)
	if v, err := c.cache.Get(key); err == nil {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return v.(domain.GeocodingResult), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	// Empty results are not cached so a later run can retry them.
	if result.FormattedAddress != "" {
		_ = c.cache.Set(key, result)
	}
	return result, nil
}

func cacheKey(query string) string {
	return "fwd:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
