package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Weather columns.
const (
	WeatherDateColumn = "date"
	WeatherPrcpColumn = ColPrcp
	WeatherTavgColumn = ColTavg
)

// WeatherDateLayout is the weather feed date format, yyyy-MM-dd.
const WeatherDateLayout = "2006-01-02"

// ParseWeatherDate parses a weather feed date as a UTC calendar date.
func ParseWeatherDate(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(WeatherDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return truncateToDate(t), true
}

// WeatherFromFrame materializes a weather frame whose prcp and tavg columns
// have been cast with [CastFloat]. Rows with an unparseable date keep a zero
// Date and never match in [JoinWeather].
func WeatherFromFrame(df dataframe.DataFrame) ([]WeatherObservation, error) {
	if err := requireColumns(df, WeatherDateColumn, WeatherPrcpColumn, WeatherTavgColumn); err != nil {
		return nil, fmt.Errorf("materialize weather: %w", err)
	}

	dates := df.Col(WeatherDateColumn)
	prcp := df.Col(WeatherPrcpColumn)
	tavg := df.Col(WeatherTavgColumn)

	out := make([]WeatherObservation, df.Nrow())
	for i := range out {
		d, _ := ParseWeatherDate(textAt(dates, i))
		out[i] = WeatherObservation{
			Date: d,
			Prcp: floatAt(prcp, i),
			Tavg: floatAt(tavg, i),
		}
	}
	return out, nil
}

// JoinWeather attaches precipitation and average temperature to each daily
// aggregate by exact calendar-date equality. Under [JoinInner] aggregates with
// no weather for their date are dropped; under [JoinLeft] they keep null
// weather. When the feed repeats a date the first observation wins, so the
// output still has at most one row per (date, station).
func JoinWeather(aggs []DailyStationAggregate, weather []WeatherObservation, policy JoinPolicy) ([]DailyStationAggregate, JoinStats, error) {
	if policy != JoinInner && policy != JoinLeft {
		return nil, JoinStats{}, fmt.Errorf("join weather: %w: %q", ErrUnknownJoinPolicy, policy)
	}

	byDate := make(map[string]WeatherObservation, len(weather))
	duplicates := 0
	for _, w := range weather {
		if w.Date.IsZero() {
			continue
		}
		k := w.Date.Format(WeatherDateLayout)
		if _, ok := byDate[k]; ok {
			duplicates++
			continue
		}
		byDate[k] = w
	}

	out := make([]DailyStationAggregate, 0, len(aggs))
	unmatched := 0
	for _, agg := range aggs {
		var (
			w  WeatherObservation
			ok bool
		)
		if agg.Date != nil {
			w, ok = byDate[truncateToDate(*agg.Date).Format(WeatherDateLayout)]
		}
		if !ok {
			unmatched++
			if policy == JoinInner {
				continue
			}
		}
		agg.Prcp = w.Prcp
		agg.Tavg = w.Tavg
		out = append(out, agg)
	}

	return out, newJoinStats(SiteWeather, policy, len(aggs), unmatched, duplicates), nil
}
