package domain

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Station reference columns.
const (
	StationIDColumn        = "id"
	StationLatitudeColumn  = "latitude"
	StationLongitudeColumn = "longitude"
)

// StationColumns is the subset of the station reference the pipeline reads.
var StationColumns = []string{StationIDColumn, StationLatitudeColumn, StationLongitudeColumn}

// LocationSeparator joins latitude and longitude in a composite location.
const LocationSeparator = ", "

// Role selects which end of a trip is being enriched.
type Role string

const (
	RoleStart Role = "start"
	RoleEnd   Role = "end"
)

// columns returns the trip key column, the location column and the join site for the role.
func (r Role) columns() (key, location, site string, err error) {
	switch r {
	case RoleStart:
		return SourceStartStationID, ColStartLocation, SiteStartStation, nil
	case RoleEnd:
		return SourceEndStationID, ColEndLocation, SiteEndStation, nil
	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrUnknownRole, r)
	}
}

// CompositeLocation renders a station position as "<latitude>, <longitude>"
// without reformatting either number.
func CompositeLocation(lat, lon string) string {
	return lat + LocationSeparator + lon
}

// EnrichLocation joins trips to the station reference on the role's station
// id and adds the role's composite location column. The joined latitude and
// longitude are dropped. Under [JoinInner] trips whose station is missing from
// the reference disappear; under [JoinLeft] they keep a null location.
// Duplicate station ids in the reference keep their first row.
func EnrichLocation(trips, stations dataframe.DataFrame, role Role, policy JoinPolicy) (dataframe.DataFrame, JoinStats, error) {
	key, location, site, err := role.columns()
	if err != nil {
		return trips, JoinStats{}, err
	}
	if policy != JoinInner && policy != JoinLeft {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: %w: %q", role, ErrUnknownJoinPolicy, policy)
	}
	if err := requireColumns(trips, key); err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: %w", role, err)
	}
	if err := requireColumns(stations, StationColumns...); err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: stations: %w", role, err)
	}

	// The join compares raw cells, so keys are trimmed on both sides first.
	trips = trimColumn(trips, key)
	ref, duplicates := uniqueStations(trimColumn(stations.Select(StationColumns), StationIDColumn))
	ref = ref.Rename(key, StationIDColumn)
	if trips.Err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: %w", role, trips.Err)
	}
	if ref.Err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: %w", role, ref.Err)
	}

	known := keySet(ref.Col(key))
	tripKeys := trips.Col(key)
	unmatched := 0
	for i := 0; i < tripKeys.Len(); i++ {
		if _, ok := known[textAt(tripKeys, i)]; !ok {
			unmatched++
		}
	}

	var joined dataframe.DataFrame
	if policy == JoinInner {
		joined = trips.InnerJoin(ref, key)
	} else {
		joined = trips.LeftJoin(ref, key)
	}
	if joined.Err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: join: %w", role, joined.Err)
	}
	joined = restoreNA(joined)

	lat := joined.Col(StationLatitudeColumn)
	lon := joined.Col(StationLongitudeColumn)
	values := make([]string, joined.Nrow())
	for i := range values {
		la, lo := textAt(lat, i), textAt(lon, i)
		if la == "" || lo == "" {
			values[i] = naText
			continue
		}
		values[i] = CompositeLocation(la, lo)
	}

	out := joined.
		Mutate(series.New(values, series.String, location)).
		Drop([]string{StationLatitudeColumn, StationLongitudeColumn})
	if out.Err != nil {
		return trips, JoinStats{}, fmt.Errorf("enrich %s location: %w", role, out.Err)
	}
	return out, newJoinStats(site, policy, trips.Nrow(), unmatched, duplicates), nil
}

// uniqueStations keeps the first row for each station id, skipping blank ids.
func uniqueStations(df dataframe.DataFrame) (dataframe.DataFrame, int) {
	ids := df.Col(StationIDColumn)
	seen := make(map[string]bool, ids.Len())
	keep := make([]int, 0, ids.Len())
	duplicates := 0
	for i := 0; i < ids.Len(); i++ {
		id := textAt(ids, i)
		if id == "" {
			continue
		}
		if seen[id] {
			duplicates++
			continue
		}
		seen[id] = true
		keep = append(keep, i)
	}
	if len(keep) == ids.Len() {
		return df, duplicates
	}
	return df.Subset(keep), duplicates
}

// StationsFrame builds a station reference frame from records.
func StationsFrame(stations []StationReference) dataframe.DataFrame {
	records := make([][]string, 0, len(stations)+1)
	records = append(records, StationColumns)
	for _, s := range stations {
		records = append(records, []string{s.ID, s.Latitude, s.Longitude})
	}
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}
