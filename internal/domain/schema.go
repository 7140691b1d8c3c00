package domain

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Source trip columns.
const (
	SourceRentalID         = "Rental Id"
	SourceDuration         = "Duration"
	SourceBikeID           = "Bike Id"
	SourceEndDate          = "End Date"
	SourceEndStationID     = "EndStation Id"
	SourceEndStationName   = "EndStation Name"
	SourceStartDate        = "Start Date"
	SourceStartStationID   = "StartStation Id"
	SourceStartStationName = "StartStation Name"
)

// Canonical trip columns.
const (
	ColRentalID         = "rental_id"
	ColDuration         = "duration"
	ColBikeID           = "bike_id"
	ColStartDate        = "start_date"
	ColStartStationID   = "start_station_id"
	ColStartStationName = "start_station_name"
	ColStartLocation    = "start_location"
	ColEndDate          = "end_date"
	ColEndStationID     = "end_station_id"
	ColEndStationName   = "end_station_name"
	ColEndLocation      = "end_location"
)

// Daily aggregate columns that are not shared with the trip schema.
const (
	ColTotalDuration = "total_duration"
	ColHireCount     = "hire_count"
	ColPrcp          = "prcp"
	ColTavg          = "tavg"
)

// ColumnRename maps one source column to its canonical name.
type ColumnRename struct {
	Source    string
	Canonical string
}

// RenameTable is the fixed source-to-canonical mapping for trip extracts.
var RenameTable = []ColumnRename{
	{Source: SourceRentalID, Canonical: ColRentalID},
	{Source: SourceDuration, Canonical: ColDuration},
	{Source: SourceBikeID, Canonical: ColBikeID},
	{Source: SourceEndDate, Canonical: ColEndDate},
	{Source: SourceEndStationID, Canonical: ColEndStationID},
	{Source: SourceEndStationName, Canonical: ColEndStationName},
	{Source: SourceStartDate, Canonical: ColStartDate},
	{Source: SourceStartStationID, Canonical: ColStartStationID},
	{Source: SourceStartStationName, Canonical: ColStartStationName},
}

// CanonicalColumns is the trip output schema, in output order.
var CanonicalColumns = []string{
	ColRentalID,
	ColDuration,
	ColBikeID,
	ColStartDate,
	ColStartStationID,
	ColStartStationName,
	ColStartLocation,
	ColEndDate,
	ColEndStationID,
	ColEndStationName,
	ColEndLocation,
}

// DailyColumns is the daily aggregate output schema, in output order.
var DailyColumns = []string{
	ColStartDate,
	ColStartStationID,
	ColStartStationName,
	ColStartLocation,
	ColTotalDuration,
	ColHireCount,
	ColPrcp,
	ColTavg,
}

// MapSchema renames source trip columns to canonical names and projects the
// frame onto [CanonicalColumns]. Columns outside the schema are dropped. The
// location columns produced by [EnrichLocation] must already be present.
func MapSchema(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	required := make([]string, 0, len(RenameTable)+2)
	for _, r := range RenameTable {
		required = append(required, r.Source)
	}
	required = append(required, ColStartLocation, ColEndLocation)
	if err := requireColumns(df, required...); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("map schema: %w", err)
	}

	for _, r := range RenameTable {
		df = df.Rename(r.Canonical, r.Source)
	}
	out := df.Select(CanonicalColumns)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("map schema: %w", out.Err)
	}
	return out, nil
}

// TripsFromFrame materializes a canonical trip frame (the output of
// [MapSchema]) into records. Date columns hold the RFC 3339 text written by
// [NormalizeTimestamp]; anything else in them reads as null.
func TripsFromFrame(df dataframe.DataFrame) ([]TripRecord, error) {
	if err := requireColumns(df, CanonicalColumns...); err != nil {
		return nil, fmt.Errorf("materialize trips: %w", err)
	}

	var (
		rentalID  = df.Col(ColRentalID)
		duration  = df.Col(ColDuration)
		bikeID    = df.Col(ColBikeID)
		startDate = df.Col(ColStartDate)
		startID   = df.Col(ColStartStationID)
		startName = df.Col(ColStartStationName)
		startLoc  = df.Col(ColStartLocation)
		endDate   = df.Col(ColEndDate)
		endID     = df.Col(ColEndStationID)
		endName   = df.Col(ColEndStationName)
		endLoc    = df.Col(ColEndLocation)
	)

	trips := make([]TripRecord, df.Nrow())
	for i := range trips {
		trips[i] = TripRecord{
			RentalID:         textAt(rentalID, i),
			Duration:         intAt(duration, i),
			BikeID:           textAt(bikeID, i),
			StartDate:        canonicalTime(textAt(startDate, i)),
			StartStationID:   textAt(startID, i),
			StartStationName: textAt(startName, i),
			StartLocation:    optionalTextAt(startLoc, i),
			EndDate:          canonicalTime(textAt(endDate, i)),
			EndStationID:     textAt(endID, i),
			EndStationName:   textAt(endName, i),
			EndLocation:      optionalTextAt(endLoc, i),
		}
	}
	return trips, nil
}

func canonicalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
