package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-gota/gota/dataframe"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
)

// Inputs are the three raw frames of one batch, every column as text.
type Inputs struct {
	Trips    dataframe.DataFrame
	Stations dataframe.DataFrame
	Weather  dataframe.DataFrame
}

// TransformOptions selects join policies and the optional station backfill.
type TransformOptions struct {
	StationJoin domain.JoinPolicy
	WeatherJoin domain.JoinPolicy
	Geocoder    domain.Geocoder
	Region      string
}

// Output is everything a batch produces before it is written.
type Output struct {
	TripsRead    int
	StationsRead int
	WeatherRead  int

	Trips     []domain.TripRecord
	Daily     []domain.DailyStationAggregate
	Joins     []domain.JoinStats
	Conflicts []domain.StationConflict
	Backfill  domain.BackfillStats
}

func (o Output) result() Result {
	return Result{
		TripsRead:    o.TripsRead,
		StationsRead: o.StationsRead,
		WeatherRead:  o.WeatherRead,
		Joins:        o.Joins,
		Conflicts:    o.Conflicts,
		Backfill:     o.Backfill,
	}
}

// Transform runs the full transformation of one batch:
// cast, enrich start and end locations, normalize timestamps, map to the
// canonical schema, aggregate per station and day, then join weather.
// Unset join policies default to inner.
func Transform(ctx context.Context, in Inputs, opts TransformOptions, logger *slog.Logger) (Output, error) {
	if opts.StationJoin == "" {
		opts.StationJoin = domain.JoinInner
	}
	if opts.WeatherJoin == "" {
		opts.WeatherJoin = domain.JoinInner
	}
	out := Output{
		TripsRead:    in.Trips.Nrow(),
		StationsRead: in.Stations.Nrow(),
		WeatherRead:  in.Weather.Nrow(),
	}

	trips, err := domain.CastInt(in.Trips, domain.SourceDuration)
	if err != nil {
		return out, fmt.Errorf("trips: %w", err)
	}
	weather := in.Weather
	for _, col := range []string{domain.WeatherPrcpColumn, domain.WeatherTavgColumn} {
		if weather, err = domain.CastFloat(weather, col); err != nil {
			return out, fmt.Errorf("weather: %w", err)
		}
	}

	stations, backfill, err := domain.BackfillStations(ctx, trips, in.Stations, opts.Geocoder, opts.Region, logger)
	if err != nil {
		return out, err
	}
	out.Backfill = backfill
	if backfill.Missing > 0 {
		logger.Info("station backfill complete",
			"missing", backfill.Missing,
			"resolved", backfill.Resolved,
			"failed", backfill.Failed,
		)
	}

	for _, role := range []domain.Role{domain.RoleStart, domain.RoleEnd} {
		var stats domain.JoinStats
		trips, stats, err = domain.EnrichLocation(trips, stations, role, opts.StationJoin)
		if err != nil {
			return out, err
		}
		out.Joins = append(out.Joins, stats)
	}

	for _, col := range []string{domain.SourceStartDate, domain.SourceEndDate} {
		if trips, err = domain.NormalizeTimestamp(trips, col); err != nil {
			return out, fmt.Errorf("trips: %w", err)
		}
	}

	canonical, err := domain.MapSchema(trips)
	if err != nil {
		return out, err
	}
	records, err := domain.TripsFromFrame(canonical)
	if err != nil {
		return out, err
	}
	out.Trips = records

	daily, conflicts := domain.AggregateDaily(records)
	out.Conflicts = conflicts

	observations, err := domain.WeatherFromFrame(weather)
	if err != nil {
		return out, err
	}
	daily, stats, err := domain.JoinWeather(daily, observations, opts.WeatherJoin)
	if err != nil {
		return out, err
	}
	out.Joins = append(out.Joins, stats)
	out.Daily = daily

	return out, nil
}
