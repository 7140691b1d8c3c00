package main

import (
	"context"
	"flag"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cycle-hire-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/cycle-hire-etl/internal/config"
)

func TestFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	opt := flagOverrides(fs, []string{
		"-input-file", "gs://tfl/journeys.csv",
		"-project", "tfl",
		"-table-hires", "hires_2021",
	})

	cfg := config.Config{
		TripsPath:     "env.csv",
		StationsPath:  "stations.csv",
		TableHires:    "hires",
		TableDailyAgg: "daily_agg",
	}
	opt(&cfg)

	assert.Equal(t, "gs://tfl/journeys.csv", cfg.TripsPath)
	assert.Equal(t, "stations.csv", cfg.StationsPath, "unset flags keep env values")
	assert.Equal(t, "tfl", cfg.Project)
	assert.Equal(t, "hires_2021", cfg.TableHires)
	assert.Equal(t, "daily_agg", cfg.TableDailyAgg)
}

func TestOpenSink(t *testing.T) {
	dir := t.TempDir()

	s, err := openSink(context.Background(), &config.Config{
		WarehouseSink:  config.SinkSQLite,
		SQLitePath:     filepath.Join(dir, "cycle.db"),
		WriteBatchSize: 10,
	}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &warehouse.Warehouse{}, s)
	require.NoError(t, s.Close())

	s, err = openSink(context.Background(), &config.Config{
		WarehouseSink: config.SinkXLSX,
		XLSXDir:       dir,
	}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &xlsx.Sink{}, s)

	_, err = openSink(context.Background(), &config.Config{WarehouseSink: "bigquery"}, slog.Default())
	assert.Error(t, err)
}
