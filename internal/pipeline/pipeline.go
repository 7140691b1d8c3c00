package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
	"github.com/couchcryptid/cycle-hire-etl/internal/observability"
)

// Source loads one CSV input into a frame of text columns.
type Source interface {
	Load(ctx context.Context, path string) (dataframe.DataFrame, error)
}

// Sink appends rows to destination tables.
type Sink interface {
	AppendTrips(ctx context.Context, table string, trips []domain.TripRecord) error
	AppendDailyAggregates(ctx context.Context, table string, rows []domain.DailyStationAggregate) error
}

// Options configures one pipeline. It replaces any process-wide session state:
// everything a run needs is passed in here.
type Options struct {
	TripsPath    string
	StationsPath string
	WeatherPath  string

	// Fully qualified destination tables.
	TripsTable string
	DailyTable string

	StationJoin domain.JoinPolicy
	WeatherJoin domain.JoinPolicy

	// Geocoder backfills stations missing from the reference. Nil disables backfill.
	Geocoder domain.Geocoder
	Region   string

	// Clock times runs; defaults to the real clock.
	Clock clockwork.Clock
}

// Result summarizes a completed run.
type Result struct {
	RunID        string
	TripsRead    int
	StationsRead int
	WeatherRead  int
	TripsWritten int
	DailyWritten int
	Joins        []domain.JoinStats
	Conflicts    []domain.StationConflict
	Backfill     domain.BackfillStats
	Duration     time.Duration
	// Error is the failure message of a failed run, empty on success.
	Error string
}

// Pipeline runs the batch extract-transform-load job.
type Pipeline struct {
	source  Source
	sink    Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu   sync.Mutex
	last *Result
}

// New creates a Pipeline. Join policies default to inner, which reproduces the
// historical row loss for unknown stations and dates without weather.
func New(source Source, sink Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.StationJoin == "" {
		opts.StationJoin = domain.JoinInner
	}
	if opts.WeatherJoin == "" {
		opts.WeatherJoin = domain.JoinInner
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:  source,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run loads the inputs, transforms them, and appends trips then daily
// aggregates to the sink. Every transformation finishes before the first
// write, so a transform failure never leaves a partial load. A failed write
// aborts the run without retrying.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := p.opts.Clock.Now()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	logger.Info("beginning treatment of file", "file", p.opts.TripsPath)

	result, err := p.run(ctx, logger)
	result.RunID = runID
	result.Duration = p.opts.Clock.Since(start)
	p.metrics.RunDuration.Observe(result.Duration.Seconds())

	if err != nil {
		result.Error = err.Error()
		p.record(result)
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("run failed", "file", p.opts.TripsPath, "error", err)
		return result, err
	}

	p.record(result)
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.ready.Store(true)
	logger.Info("ended treatment of file",
		"file", p.opts.TripsPath,
		"trips_written", result.TripsWritten,
		"daily_written", result.DailyWritten,
		"duration", result.Duration,
	)
	return result, nil
}

// LastRun returns the result of the most recent run, if any.
func (p *Pipeline) LastRun() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Result{}, false
	}
	return *p.last, true
}

func (p *Pipeline) record(r Result) {
	p.mu.Lock()
	p.last = &r
	p.mu.Unlock()
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger) (Result, error) {
	out, err := p.transform(ctx, logger)
	result := out.result()
	if err != nil {
		return result, err
	}

	if err := p.sink.AppendTrips(ctx, p.opts.TripsTable, out.Trips); err != nil {
		return result, fmt.Errorf("append trips to %s: %w", p.opts.TripsTable, err)
	}
	result.TripsWritten = len(out.Trips)
	p.metrics.RowsWritten.WithLabelValues(p.opts.TripsTable).Add(float64(len(out.Trips)))
	logger.Info("trips appended", "table", p.opts.TripsTable, "rows", len(out.Trips))

	if err := p.sink.AppendDailyAggregates(ctx, p.opts.DailyTable, out.Daily); err != nil {
		return result, fmt.Errorf("append daily aggregates to %s: %w", p.opts.DailyTable, err)
	}
	result.DailyWritten = len(out.Daily)
	p.metrics.RowsWritten.WithLabelValues(p.opts.DailyTable).Add(float64(len(out.Daily)))
	logger.Info("daily aggregates appended", "table", p.opts.DailyTable, "rows", len(out.Daily))

	return result, nil
}

// Transform loads and transforms the inputs without writing anything.
func (p *Pipeline) Transform(ctx context.Context) (Output, error) {
	return p.transform(ctx, p.logger)
}

func (p *Pipeline) transform(ctx context.Context, logger *slog.Logger) (Output, error) {
	in, err := p.load(ctx)
	if err != nil {
		return Output{}, err
	}
	p.metrics.RowsRead.WithLabelValues("trips").Add(float64(in.Trips.Nrow()))
	p.metrics.RowsRead.WithLabelValues("stations").Add(float64(in.Stations.Nrow()))
	p.metrics.RowsRead.WithLabelValues("weather").Add(float64(in.Weather.Nrow()))

	out, err := Transform(ctx, in, TransformOptions{
		StationJoin: p.opts.StationJoin,
		WeatherJoin: p.opts.WeatherJoin,
		Geocoder:    p.opts.Geocoder,
		Region:      p.opts.Region,
	}, logger)
	if err != nil {
		return out, err
	}

	for _, s := range out.Joins {
		p.metrics.RowsDropped.WithLabelValues(s.Site).Add(float64(s.Dropped))
		logJoin(logger, s)
	}
	p.metrics.StationConflicts.Add(float64(len(out.Conflicts)))
	for _, c := range out.Conflicts {
		logger.Warn("station attribute differs across trips",
			"station_id", c.StationID,
			"field", c.Field,
			"kept", c.Kept,
			"other", c.Other,
		)
	}
	return out, nil
}

// load reads the three inputs concurrently.
func (p *Pipeline) load(ctx context.Context) (Inputs, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range []struct {
		path string
		dst  *dataframe.DataFrame
	}{
		{p.opts.TripsPath, &in.Trips},
		{p.opts.StationsPath, &in.Stations},
		{p.opts.WeatherPath, &in.Weather},
	} {
		g.Go(func() error {
			df, err := p.source.Load(gctx, f.path)
			if err != nil {
				return fmt.Errorf("load %s: %w", f.path, err)
			}
			*f.dst = df
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

func logJoin(logger *slog.Logger, s domain.JoinStats) {
	attrs := []any{
		"site", s.Site,
		"policy", s.Policy,
		"rows", s.Rows,
		"unmatched", s.Unmatched,
		"dropped", s.Dropped,
		"duplicate_keys", s.DuplicateKeys,
	}
	switch {
	case s.Unmatched > 0:
		logger.Warn("join left rows unmatched", attrs...)
	case s.DuplicateKeys > 0:
		logger.Warn("join reference has duplicate keys", attrs...)
	default:
		logger.Info("join complete", attrs...)
	}
}
