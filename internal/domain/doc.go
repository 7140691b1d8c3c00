// Package domain models bike-hire trip data and the transformations that turn
// raw journey extracts into warehouse tables.
//
// # Data Sources
//
// Journey extracts are CSV files with one row per rental:
//
//	Rental Id,Duration,Bike Id,End Date,EndStation Id,EndStation Name,Start Date,StartStation Id,StartStation Name
//	61349326,840,12265,25/12/2021 14:44,191,"Hyde Park Corner, Hyde Park",25/12/2021 14:30,303,"Albert Gate, Hyde Park"
//
// Dates use day-first notation ("dd/MM/yyyy HH:mm") and carry no zone; they
// are interpreted as UTC. Duration is whole seconds.
//
// The station reference is a CSV with at least "id", "latitude" and
// "longitude". Coordinates are kept as text so the composite location string
// reproduces the source digits exactly.
//
// Daily weather is a CSV with "date" ("yyyy-MM-dd"), "prcp" (precipitation, mm)
// and "tavg" (average temperature, °C). Extra weather columns are ignored.
//
// # Frames and Records
//
// Ingest, casting, station enrichment and schema mapping operate on
// go-gota dataframes so the column contract stays inspectable: see
// [CastInt], [EnrichLocation], [NormalizeTimestamp] and [MapSchema]. The
// canonical frame is then materialized into [TripRecord] values by
// [TripsFromFrame], and the daily branch ([AggregateDaily], [JoinWeather])
// works on typed records.
//
// # Nulls
//
// Empty cells, unparseable numbers and unparseable timestamps become nulls:
// nil pointers on records, NA elements on frames. Text fields use the empty
// string for null. Nothing in this package fails a record because of a bad
// value; only a missing required column is an error ([ErrMissingColumn]).
//
// # Joins
//
// Station and weather enrichment are joins with an explicit [JoinPolicy].
// [JoinInner] drops rows that have no match (a trip whose station is absent
// from the reference, or a daily row whose date has no weather). [JoinLeft]
// keeps them with null enrichment. Every join reports [JoinStats] so callers
// can count the rows a policy discarded.
package domain
