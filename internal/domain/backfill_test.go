package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	results map[string]GeocodingResult
	errs    map[string]error
	queries []string
}

func (s *stubGeocoder) ForwardGeocode(_ context.Context, query string) (GeocodingResult, error) {
	s.queries = append(s.queries, query)
	if err, ok := s.errs[query]; ok {
		return GeocodingResult{}, err
	}
	return s.results[query], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackfillStations_NilGeocoder(t *testing.T) {
	stations := stationsFrame(t)
	trips := frameFromCSV(t, tripHeader+"1,600,10,,999,Nowhere,,303,Albert Gate\n")

	out, stats, err := BackfillStations(context.Background(), trips, stations, nil, "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, stations.Nrow(), out.Nrow())
	assert.Equal(t, BackfillStats{}, stats)
}

func TestBackfillStations_ResolvesMissing(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,,700,Soho Square,,303,Albert Gate\n"+
		"2,600,11,,191,Hyde Park Corner,,800,Unknown Place\n"+
		"3,600,12,,191,Hyde Park Corner,,900,\n")
	geo := &stubGeocoder{
		results: map[string]GeocodingResult{
			"Soho Square, London": {Lat: 51.515, Lon: -0.132},
		},
		errs: map[string]error{
			"Unknown Place, London": errors.New("no results"),
		},
	}

	out, stats, err := BackfillStations(context.Background(), trips, stationsFrame(t), geo, "London", discardLogger())
	require.NoError(t, err)

	assert.Equal(t, BackfillStats{Missing: 3, Resolved: 1, Failed: 2}, stats)
	assert.Equal(t, []string{"Soho Square, London", "Unknown Place, London"}, geo.queries)
	assert.Equal(t, StationColumns, out.Names())
	require.Equal(t, 3, out.Nrow())

	row := rowByColumn(t, out, StationIDColumn, "700")
	assert.Equal(t, "51.515", out.Col(StationLatitudeColumn).Elem(row).String())
	assert.Equal(t, "-0.132", out.Col(StationLongitudeColumn).Elem(row).String())

	enriched, joinStats, err := EnrichLocation(trips, out, RoleEnd, JoinInner)
	require.NoError(t, err)
	assert.Equal(t, 3, enriched.Nrow())
	assert.Zero(t, joinStats.Dropped)
}

func TestBackfillStations_ZeroCoordinatesSkipped(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+"1,600,10,,303,Albert Gate,,555,Atlantis\n")
	geo := &stubGeocoder{results: map[string]GeocodingResult{}}

	out, stats, err := BackfillStations(context.Background(), trips, stationsFrame(t), geo, "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlantis"}, geo.queries)
	assert.Equal(t, BackfillStats{Missing: 1, Failed: 1}, stats)
	assert.Equal(t, 2, out.Nrow())
}

func TestBackfillStations_CanceledContext(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+"1,600,10,,303,Albert Gate,,555,Atlantis\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := BackfillStations(ctx, trips, stationsFrame(t), &stubGeocoder{}, "", discardLogger())
	require.ErrorIs(t, err, context.Canceled)
}
