// Command genmock generates a deterministic set of cycle hire fixtures: a
// journey extract, a station reference, and a daily weather feed. It runs the
// real transformation over what it wrote and saves the expected daily
// aggregates as JSON, so sink and integration tests can compare against
// actual pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 7 -trips 500
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/source"
	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/pipeline"
)

var baseDate = time.Date(2015, time.January, 4, 0, 0, 0, 0, time.UTC)

type station struct {
	id, name, lat, lon string
}

var stations = []station{
	{"1", "River Street , Clerkenwell", "51.529163", "-0.10997"},
	{"14", "Belgrove Street , King's Cross", "51.529943", "-0.123616"},
	{"66", "Holborn Circus, Holborn", "51.51795", "-0.108657"},
	{"154", "Waterloo Station 3, Waterloo", "51.503791", "-0.112824"},
	{"191", "Hyde Park Corner, Hyde Park", "51.503117", "-0.15352"},
	{"248", "Triangle Car Park, Hyde Park", "51.505393", "-0.165824"},
	{"303", "Albert Gate, Hyde Park", "51.50295", "-0.15851"},
	{"374", "Waterloo Station 1, Waterloo", "51.504027", "-0.113864"},
	{"407", "Speakers' Corner 1, Hyde Park", "51.5118", "-0.16381"},
	{"732", "Duke Street Hill, London Bridge", "51.506304", "-0.087262"},
}

// unknownStation is referenced by trips but absent from the station file.
var unknownStation = station{"999", "Queen Elizabeth Olympic Park, Stratford", "", ""}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	days := flag.Int("days", 7, "number of days of trips and weather")
	trips := flag.Int("trips", 500, "number of trips")
	unknownRate := flag.Float64("unknown-rate", 0.02, "share of trips starting at a station missing from the reference")
	skipWeather := flag.Int("skip-weather-days", 1, "trailing days with no weather observation")
	seed := flag.Uint64("seed", 20150104, "random seed")
	flag.Parse()

	if *days < 1 || *trips < 1 {
		flag.Usage()
		return fmt.Errorf("-days and -trips must be positive")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	files := map[string][][]string{
		"journeys.csv": tripRecords(rng, *trips, *days, *unknownRate),
		"stations.csv": stationRecords(),
		"weather.csv":  weatherRecords(rng, *days-*skipWeather),
	}
	for name, records := range files {
		path := filepath.Join(*out, name)
		if err := writeCSV(path, records); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("wrote %s: %d rows", path, len(records)-1)
	}

	result, err := transform(*out)
	if err != nil {
		return fmt.Errorf("transforming fixtures: %w", err)
	}
	expected := filepath.Join(*out, "daily_agg_expected.json")
	if err := writeJSON(expected, result.Daily); err != nil {
		return fmt.Errorf("writing expected aggregates: %w", err)
	}
	log.Printf("wrote %s: %d rows", expected, len(result.Daily))

	printStats(result)
	return nil
}

func tripRecords(rng *rand.Rand, n, days int, unknownRate float64) [][]string {
	records := make([][]string, 0, n+1)
	records = append(records, []string{
		domain.SourceRentalID, domain.SourceDuration, domain.SourceBikeID,
		domain.SourceEndDate, domain.SourceEndStationID, domain.SourceEndStationName,
		domain.SourceStartDate, domain.SourceStartStationID, domain.SourceStartStationName,
	})
	for i := range n {
		start := stations[rng.IntN(len(stations))]
		if rng.Float64() < unknownRate {
			start = unknownStation
		}
		end := stations[rng.IntN(len(stations))]

		// Whole minutes, since the extract drops seconds from its timestamps.
		minutes := 2 + rng.IntN(58)
		startAt := baseDate.
			AddDate(0, 0, rng.IntN(days)).
			Add(time.Duration(6*60+rng.IntN(16*60)) * time.Minute)
		endAt := startAt.Add(time.Duration(minutes) * time.Minute)

		records = append(records, []string{
			strconv.Itoa(40346508 + i),
			strconv.Itoa(minutes * 60),
			strconv.Itoa(1000 + rng.IntN(12000)),
			endAt.Format(domain.TripTimeLayout),
			end.id,
			end.name,
			startAt.Format(domain.TripTimeLayout),
			start.id,
			start.name,
		})
	}
	return records
}

func stationRecords() [][]string {
	records := make([][]string, 0, len(stations)+1)
	records = append(records, []string{domain.StationIDColumn, "name", domain.StationLatitudeColumn, domain.StationLongitudeColumn})
	for _, s := range stations {
		records = append(records, []string{s.id, s.name, s.lat, s.lon})
	}
	return records
}

func weatherRecords(rng *rand.Rand, days int) [][]string {
	records := [][]string{{domain.WeatherDateColumn, "tmin", "tmax", domain.WeatherTavgColumn, domain.WeatherPrcpColumn}}
	for d := range max(days, 0) {
		tmin := -2 + rng.Float64()*6
		tmax := tmin + 3 + rng.Float64()*6
		prcp := 0.0
		if rng.IntN(3) == 0 {
			prcp = rng.Float64() * 12
		}
		records = append(records, []string{
			baseDate.AddDate(0, 0, d).Format(domain.WeatherDateLayout),
			strconv.FormatFloat(tmin, 'f', 1, 64),
			strconv.FormatFloat(tmax, 'f', 1, 64),
			strconv.FormatFloat((tmin+tmax)/2, 'f', 1, 64),
			strconv.FormatFloat(prcp, 'f', 1, 64),
		})
	}
	return records
}

func writeCSV(path string, records [][]string) error {
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df.Err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// transform reads the fixtures back and runs them through the default
// inner-join transformation.
func transform(dir string) (pipeline.Output, error) {
	var in pipeline.Inputs
	for name, dst := range map[string]*dataframe.DataFrame{
		"journeys.csv": &in.Trips,
		"stations.csv": &in.Stations,
		"weather.csv":  &in.Weather,
	} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return pipeline.Output{}, err
		}
		df, err := source.ReadCSV(f)
		f.Close()
		if err != nil {
			return pipeline.Output{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = df
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return pipeline.Transform(context.Background(), in, pipeline.TransformOptions{}, logger)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(out pipeline.Output) {
	fmt.Println("\n=== Fixture Statistics ===")
	fmt.Printf("Trips read:       %d\n", out.TripsRead)
	fmt.Printf("Trips kept:       %d\n", len(out.Trips))
	fmt.Printf("Daily aggregates: %d\n", len(out.Daily))
	fmt.Println("\nJoins:")
	for _, j := range out.Joins {
		fmt.Printf("  %-14s %-5s rows=%d unmatched=%d dropped=%d\n", j.Site, j.Policy, j.Rows, j.Unmatched, j.Dropped)
	}
	fmt.Printf("\nStation conflicts: %d\n", len(out.Conflicts))
}
