package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/cycle-hire-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cycle-hire-etl/internal/adapter/kafka"
	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/source"
	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/cycle-hire-etl/internal/config"
	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/observability"
	"github.com/couchcryptid/cycle-hire-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(flagOverrides(flag.CommandLine, os.Args[1:]))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Geocoding backfill is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	stationJoin, err := domain.ParseJoinPolicy(cfg.StationJoin)
	if err != nil {
		return err
	}
	weatherJoin, err := domain.ParseJoinPolicy(cfg.WeatherJoin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "sink", sink)

	loader := source.NewLoader(cfg.GCSTempBucket, logger)
	defer closeQuietly(logger, "source", loader)

	p := pipeline.New(loader, sink, pipeline.Options{
		TripsPath:    cfg.TripsPath,
		StationsPath: cfg.StationsPath,
		WeatherPath:  cfg.WeatherPath,
		TripsTable:   cfg.QualifiedTable(cfg.TableHires),
		DailyTable:   cfg.QualifiedTable(cfg.TableDailyAgg),
		StationJoin:  stationJoin,
		WeatherJoin:  weatherJoin,
		Geocoder:     geocoder,
		Region:       cfg.MapboxRegion,
	}, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	result, err := p.Run(runCtx)
	if err != nil {
		return err
	}
	logger.Info("etl complete",
		"run_id", result.RunID,
		"trips_written", result.TripsWritten,
		"daily_written", result.DailyWritten,
		"duration", result.Duration,
	)
	return nil
}

type closingSink interface {
	pipeline.Sink
	io.Closer
}

// openSink builds the configured destination.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closingSink, error) {
	switch cfg.WarehouseSink {
	case config.SinkPostgres:
		return warehouse.Open(ctx, warehouse.Postgres, cfg.DatabaseURL, cfg.WriteBatchSize, logger)
	case config.SinkSQLite:
		return warehouse.Open(ctx, warehouse.SQLite, cfg.SQLitePath, cfg.WriteBatchSize, logger)
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.WriteBatchSize, logger), nil
	case config.SinkXLSX:
		return xlsx.NewSink(cfg.XLSXDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown warehouse sink %q", cfg.WarehouseSink)
	}
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}

// flagOverrides parses the job's command-line arguments. Flags that are set
// take precedence over the environment.
func flagOverrides(fs *flag.FlagSet, args []string) config.Option {
	inputFile := fs.String("input-file", "", "journey extract CSV (local path or gs://bucket/object)")
	stationData := fs.String("station-data", "", "station reference CSV")
	weatherData := fs.String("weather-data", "", "daily weather CSV")
	project := fs.String("project", "", "destination project or dataset")
	tableHires := fs.String("table-hires", "", "destination table for trips")
	tableDaily := fs.String("table-daily-agg", "", "destination table for daily aggregates")
	_ = fs.Parse(args)

	return func(cfg *config.Config) {
		for dst, v := range map[*string]string{
			&cfg.TripsPath:     *inputFile,
			&cfg.StationsPath:  *stationData,
			&cfg.WeatherPath:   *weatherData,
			&cfg.Project:       *project,
			&cfg.TableHires:    *tableHires,
			&cfg.TableDailyAgg: *tableDaily,
		} {
			if v != "" {
				*dst = v
			}
		}
	}
}
