package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	logger.Debug("hidden")
	logger.Info("beginning treatment of file", "file", "trips.csv")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "beginning treatment of file", entry["msg"])
	assert.Equal(t, "trips.csv", entry["file"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "text", "debug")

	logger.Debug("station geocoding returned no coordinates", "station_id", "303")

	assert.Contains(t, buf.String(), "station geocoding returned no coordinates")
	assert.Contains(t, buf.String(), "303")
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsDropped.WithLabelValues("weather").Add(3)
	a.StationConflicts.Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(a.RowsDropped.WithLabelValues("weather")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RowsDropped.WithLabelValues("weather")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.StationConflicts), 0)
}

func TestMetrics_RegisterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsForTesting()
	require.NoError(t, registerAll(reg, m))

	m.RowsRead.WithLabelValues("trips").Add(5)
	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cycle_etl_rows_read_total")
}

func registerAll(reg prometheus.Registerer, m *Metrics) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
