package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
)

// BackfillStats summarizes a station backfill pass.
type BackfillStats struct {
	Missing  int // distinct station ids referenced by trips but absent from the reference
	Resolved int
	Failed   int
}

// BackfillStations geocodes stations that trips reference but the station
// reference lacks, using the station name (suffixed with region when set), and
// returns the reference with the resolved stations appended. Lookups that fail
// or return no coordinates are logged and skipped, leaving those trips to the
// join policy. A nil geocoder returns the reference unchanged.
func BackfillStations(ctx context.Context, trips, stations dataframe.DataFrame, geocoder Geocoder, region string, logger *slog.Logger) (dataframe.DataFrame, BackfillStats, error) {
	if geocoder == nil {
		return stations, BackfillStats{}, nil
	}
	if err := requireColumns(stations, StationColumns...); err != nil {
		return stations, BackfillStats{}, fmt.Errorf("backfill stations: %w", err)
	}
	if err := requireColumns(trips, SourceStartStationID, SourceStartStationName, SourceEndStationID, SourceEndStationName); err != nil {
		return stations, BackfillStats{}, fmt.Errorf("backfill stations: %w", err)
	}

	ref := stations.Select(StationColumns)
	known := keySet(ref.Col(StationIDColumn))
	missing := make(map[string]string)
	collect := func(idCol, nameCol string) {
		ids, names := trips.Col(idCol), trips.Col(nameCol)
		for i := 0; i < ids.Len(); i++ {
			id := textAt(ids, i)
			if id == "" {
				continue
			}
			if _, ok := known[id]; ok {
				continue
			}
			if name := textAt(names, i); missing[id] == "" {
				missing[id] = name
			}
		}
	}
	collect(SourceStartStationID, SourceStartStationName)
	collect(SourceEndStationID, SourceEndStationName)

	ids := make([]string, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := BackfillStats{Missing: len(ids)}
	var resolved []StationReference
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stations, stats, err
		}
		name := missing[id]
		if name == "" {
			stats.Failed++
			continue
		}
		query := name
		if region != "" {
			query = name + ", " + region
		}

		result, err := geocoder.ForwardGeocode(ctx, query)
		if err != nil {
			logger.Warn("station geocoding failed",
				"station_id", id,
				"station_name", name,
				"error", err,
			)
			stats.Failed++
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			logger.Debug("station geocoding returned no coordinates", "station_id", id, "station_name", name)
			stats.Failed++
			continue
		}

		resolved = append(resolved, StationReference{
			ID:        id,
			Latitude:  strconv.FormatFloat(result.Lat, 'f', -1, 64),
			Longitude: strconv.FormatFloat(result.Lon, 'f', -1, 64),
		})
		stats.Resolved++
	}

	if len(resolved) == 0 {
		return stations, stats, nil
	}
	out := ref.RBind(StationsFrame(resolved))
	if out.Err != nil {
		return stations, stats, fmt.Errorf("backfill stations: %w", out.Err)
	}
	return restoreNA(out), stats, nil
}
