package domain

import (
	"sort"
	"time"
)

// StationConflict records a station id that appeared with more than one name
// or location across a batch.
type StationConflict struct {
	StationID string
	Field     string // ColStartStationName or ColStartLocation
	Kept      string // first value seen for the station
	Other     string
}

type dailyKey struct {
	date      string // YYYY-MM-DD, empty for a null start date
	stationID string
}

// AggregateDaily groups trips by (start date, start station) and summarizes
// each group: total duration, hire count, and the station's name and location.
//
// Name and location are assumed to be functionally determined by the station
// id, so each group takes its first non-null value. Every station id whose
// trips disagree on either field is reported as a [StationConflict] instead of
// being silently collapsed.
//
// Output is ordered by date, then station id; a null date sorts first.
func AggregateDaily(trips []TripRecord) ([]DailyStationAggregate, []StationConflict) {
	groups := make(map[dailyKey]*DailyStationAggregate)
	var order []dailyKey
	check := newStationCheck()

	for i := range trips {
		trip := &trips[i]
		key := dailyKey{stationID: trip.StartStationID}
		var date *time.Time
		if trip.StartDate != nil {
			d := truncateToDate(*trip.StartDate)
			date = &d
			key.date = d.Format(WeatherDateLayout)
		}

		agg, ok := groups[key]
		if !ok {
			agg = &DailyStationAggregate{Date: date, StartStationID: trip.StartStationID}
			groups[key] = agg
			order = append(order, key)
		}

		if agg.StartStationName == "" {
			agg.StartStationName = trip.StartStationName
		}
		if agg.StartLocation == nil && trip.StartLocation != nil {
			loc := *trip.StartLocation
			agg.StartLocation = &loc
		}
		if trip.Duration != nil {
			total := *trip.Duration
			if agg.TotalDuration != nil {
				total += *agg.TotalDuration
			}
			agg.TotalDuration = &total
		}
		if trip.RentalID != "" {
			agg.HireCount++
		}

		check.observe(trip.StartStationID, ColStartStationName, trip.StartStationName)
		if trip.StartLocation != nil {
			check.observe(trip.StartStationID, ColStartLocation, *trip.StartLocation)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].date != order[j].date {
			return order[i].date < order[j].date
		}
		return order[i].stationID < order[j].stationID
	})

	out := make([]DailyStationAggregate, len(order))
	for i, k := range order {
		out[i] = *groups[k]
	}
	return out, check.conflicts
}

// stationCheck verifies that name and location are constant per station id.
type stationCheck struct {
	first     map[[2]string]string
	reported  map[[3]string]bool
	conflicts []StationConflict
}

func newStationCheck() *stationCheck {
	return &stationCheck{
		first:    make(map[[2]string]string),
		reported: make(map[[3]string]bool),
	}
}

func (c *stationCheck) observe(stationID, field, value string) {
	if stationID == "" || value == "" {
		return
	}
	k := [2]string{stationID, field}
	kept, ok := c.first[k]
	if !ok {
		c.first[k] = value
		return
	}
	if kept == value || c.reported[[3]string{stationID, field, value}] {
		return
	}
	c.reported[[3]string{stationID, field, value}] = true
	c.conflicts = append(c.conflicts, StationConflict{
		StationID: stationID,
		Field:     field,
		Kept:      kept,
		Other:     value,
	})
}
