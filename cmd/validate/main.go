// Command validate performs a dry run of the cycle hire pipeline: it loads
// and transforms the inputs without writing anything, then checks the output
// for join losses, station attribute conflicts, null keys, and aggregate
// consistency. With -expected it also diffs the daily aggregates against a
// JSON fixture produced by genmock.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input-file data/mock/journeys.csv \
//	  -station-data data/mock/stations.csv \
//	  -weather-data data/mock/weather.csv \
//	  -expected data/mock/daily_agg_expected.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/source"
	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/observability"
	"github.com/couchcryptid/cycle-hire-etl/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	tripsPath, stationsPath, weatherPath string
	expectedPath                         string
	gcsBucket                            string
	stationJoin, weatherJoin             string
}

func main() {
	var o options
	flag.StringVar(&o.tripsPath, "input-file", "", "journey extract CSV (local path or gs://bucket/object)")
	flag.StringVar(&o.stationsPath, "station-data", "", "station reference CSV")
	flag.StringVar(&o.weatherPath, "weather-data", "", "daily weather CSV")
	flag.StringVar(&o.expectedPath, "expected", "", "optional JSON fixture of expected daily aggregates")
	flag.StringVar(&o.gcsBucket, "gcs-bucket", os.Getenv("GCS_TEMP_BUCKET"), "bucket for gs:///object paths")
	flag.StringVar(&o.stationJoin, "station-join", "inner", "station join policy (inner or left)")
	flag.StringVar(&o.weatherJoin, "weather-join", "inner", "weather join policy (inner or left)")
	flag.Parse()

	if o.tripsPath == "" || o.stationsPath == "" || o.weatherPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(o); code != 0 {
		os.Exit(code)
	}
}

func run(o options) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	stationJoin, err := domain.ParseJoinPolicy(o.stationJoin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	weatherJoin, err := domain.ParseJoinPolicy(o.weatherJoin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	loader := source.NewLoader(o.gcsBucket, logger)
	defer loader.Close()

	p := pipeline.New(loader, nil, pipeline.Options{
		TripsPath:    o.tripsPath,
		StationsPath: o.stationsPath,
		WeatherPath:  o.weatherPath,
		StationJoin:  stationJoin,
		WeatherJoin:  weatherJoin,
	}, logger, observability.NewMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Println("=== Cycle Hire Dry Run ===")
	fmt.Println()

	out, err := p.Transform(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: transform: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateJoins(out.Joins),
		validateStations(out.Conflicts),
		validateTrips(out.Trips),
		validateAggregates(out.Trips, out.Daily, weatherJoin),
	}
	if o.expectedPath != "" {
		phases = append(phases, validateExpected(out.Daily, o.expectedPath))
	}

	fmt.Printf("Rows: %d trips read, %d stations, %d weather days\n", out.TripsRead, out.StationsRead, out.WeatherRead)
	fmt.Printf("Output: %d trips, %d daily aggregates\n\n", len(out.Trips), len(out.Daily))

	allPassed := true
	for _, ph := range phases {
		status := "\033[32mPASS\033[0m"
		if !ph.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(ph.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", ph.name, status)
	}

	for _, ph := range phases {
		if len(ph.errors) == 0 && len(ph.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", ph.name)
		for i, e := range ph.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, w := range ph.warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateJoins(joins []domain.JoinStats) *phase {
	ph := &phase{name: "Join coverage"}
	for _, j := range joins {
		if j.Dropped > 0 {
			ph.errorf("%s (%s join): %d of %d rows dropped", j.Site, j.Policy, j.Dropped, j.Rows)
		} else if j.Unmatched > 0 {
			ph.warnf("%s (%s join): %d of %d rows kept with null enrichment", j.Site, j.Policy, j.Unmatched, j.Rows)
		}
		if j.DuplicateKeys > 0 {
			ph.warnf("%s: %d duplicate reference keys, first row kept", j.Site, j.DuplicateKeys)
		}
	}
	return ph
}

func validateStations(conflicts []domain.StationConflict) *phase {
	ph := &phase{name: "Station attributes"}
	for _, c := range conflicts {
		ph.errorf("station %s: %s %q differs from %q", c.StationID, c.Field, c.Other, c.Kept)
	}
	return ph
}

func validateTrips(trips []domain.TripRecord) *phase {
	ph := &phase{name: "Trip fields"}
	var noID, noDuration, noStart, noLocation int
	for i := range trips {
		t := &trips[i]
		if t.RentalID == "" {
			noID++
		}
		if t.Duration == nil {
			noDuration++
		}
		if t.StartDate == nil {
			noStart++
		}
		if t.StartLocation == nil {
			noLocation++
		}
	}
	if noID > 0 {
		ph.warnf("%d trips without a rental id are excluded from hire counts", noID)
	}
	if noDuration > 0 {
		ph.warnf("%d trips with a null duration", noDuration)
	}
	if noStart > 0 {
		ph.warnf("%d trips with an unparseable start date", noStart)
	}
	if noLocation > 0 {
		ph.warnf("%d trips with a null start location", noLocation)
	}
	return ph
}

// validateAggregates checks that each (date, station) appears once and, when
// no rows were dropped by the weather join, that hire counts and durations
// add back up to the trips.
func validateAggregates(trips []domain.TripRecord, daily []domain.DailyStationAggregate, weatherJoin domain.JoinPolicy) *phase {
	ph := &phase{name: "Daily aggregates"}

	seen := make(map[string]bool, len(daily))
	var hires, duration int64
	for _, a := range daily {
		k := dateKey(a.Date) + "/" + a.StartStationID
		if seen[k] {
			ph.errorf("duplicate aggregate for %s", k)
		}
		seen[k] = true
		hires += a.HireCount
		if a.TotalDuration != nil {
			duration += *a.TotalDuration
		}
		if a.HireCount == 0 {
			ph.warnf("aggregate %s has no hires with a rental id", k)
		}
	}

	if weatherJoin != domain.JoinLeft {
		return ph
	}
	var wantHires, wantDuration int64
	for i := range trips {
		if trips[i].RentalID != "" {
			wantHires++
		}
		if trips[i].Duration != nil {
			wantDuration += *trips[i].Duration
		}
	}
	if hires != wantHires {
		ph.errorf("hire counts sum to %d, want %d", hires, wantHires)
	}
	if duration != wantDuration {
		ph.errorf("total durations sum to %d, want %d", duration, wantDuration)
	}
	return ph
}

func validateExpected(daily []domain.DailyStationAggregate, path string) *phase {
	ph := &phase{name: "Expected fixture"}
	data, err := os.ReadFile(path)
	if err != nil {
		ph.errorf("read %s: %v", path, err)
		return ph
	}
	var want []domain.DailyStationAggregate
	if err := json.Unmarshal(data, &want); err != nil {
		ph.errorf("decode %s: %v", path, err)
		return ph
	}
	if diff := cmp.Diff(want, daily); diff != "" {
		ph.errorf("daily aggregates differ from fixture (-want +got):\n%s", diff)
	}
	return ph
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.Format(domain.WeatherDateLayout)
}
