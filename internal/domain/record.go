package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMissingColumn is returned when a frame lacks a column the operation requires.
	ErrMissingColumn = errors.New("missing required column")

	// ErrUnknownRole is returned for a station role other than start or end.
	ErrUnknownRole = errors.New("unknown station role")

	// ErrUnknownJoinPolicy is returned for a join policy other than inner or left.
	ErrUnknownJoinPolicy = errors.New("unknown join policy")
)

// TripRecord is one rental in the canonical trip schema.
type TripRecord struct {
	RentalID         string     `json:"rental_id"`
	Duration         *int64     `json:"duration"` // seconds
	BikeID           string     `json:"bike_id"`
	StartDate        *time.Time `json:"start_date"`
	StartStationID   string     `json:"start_station_id"`
	StartStationName string     `json:"start_station_name"`
	StartLocation    *string    `json:"start_location"` // "lat, lon"
	EndDate          *time.Time `json:"end_date"`
	EndStationID     string     `json:"end_station_id"`
	EndStationName   string     `json:"end_station_name"`
	EndLocation      *string    `json:"end_location"`
}

// StationReference is one physical docking station.
type StationReference struct {
	ID        string
	Latitude  string
	Longitude string
}

// WeatherObservation is one calendar day of weather.
type WeatherObservation struct {
	Date time.Time // zero when the source date could not be parsed
	Prcp *float64
	Tavg *float64
}

// DailyStationAggregate summarizes the hires that started at one station on one day.
type DailyStationAggregate struct {
	Date             *time.Time `json:"start_date"`
	StartStationID   string     `json:"start_station_id"`
	StartStationName string     `json:"start_station_name"`
	StartLocation    *string    `json:"start_location"`
	TotalDuration    *int64     `json:"total_duration"`
	HireCount        int64      `json:"hire_count"`
	Prcp             *float64   `json:"prcp"`
	Tavg             *float64   `json:"tavg"`
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves a free-text place query to coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}
