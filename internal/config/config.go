package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Warehouse sinks.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkKafka    = "kafka"
	SinkXLSX     = "xlsx"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	TripsPath    string `envconfig:"TRIPS_PATH" validate:"required"`
	StationsPath string `envconfig:"STATIONS_PATH" validate:"required"`
	WeatherPath  string `envconfig:"WEATHER_PATH" validate:"required"`

	// Destination tables are written as "<project>.<table>" when Project is set.
	Project       string `envconfig:"PROJECT" validate:"omitempty,identifier"`
	TableHires    string `envconfig:"TABLE_HIRES" default:"hires" validate:"required,table"`
	TableDailyAgg string `envconfig:"TABLE_DAILY_AGG" default:"daily_agg" validate:"required,table"`

	WarehouseSink  string   `envconfig:"WAREHOUSE_SINK" default:"sqlite" validate:"oneof=postgres sqlite kafka xlsx"`
	DatabaseURL    string   `envconfig:"DATABASE_URL" validate:"required_if=WarehouseSink postgres"`
	SQLitePath     string   `envconfig:"SQLITE_PATH" default:"cycle_hire.db" validate:"required_if=WarehouseSink sqlite"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092" validate:"required_if=WarehouseSink kafka"`
	XLSXDir        string   `envconfig:"XLSX_DIR" default:"out" validate:"required_if=WarehouseSink xlsx"`
	WriteBatchSize int      `envconfig:"WRITE_BATCH_SIZE" default:"500" validate:"min=1,max=10000"`

	StationJoin string `envconfig:"STATION_JOIN" default:"inner" validate:"oneof=inner left"`
	WeatherJoin string `envconfig:"WEATHER_JOIN" default:"inner" validate:"oneof=inner left"`

	// GCSTempBucket is the bucket used for "gs:///object" paths.
	GCSTempBucket string `envconfig:"GCS_TEMP_BUCKET"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	RunTimeout      time.Duration `envconfig:"RUN_TIMEOUT" default:"30m" validate:"gt=0"`

	// Mapbox geocoding backfills stations missing from the reference file.
	MapboxToken     string        `envconfig:"MAPBOX_TOKEN"`
	MapboxEnabled   bool          `ignored:"true"`
	MapboxTimeout   time.Duration `envconfig:"MAPBOX_TIMEOUT" default:"5s" validate:"gt=0"`
	MapboxCacheSize int           `envconfig:"MAPBOX_CACHE_SIZE" default:"1000" validate:"min=1"`
	MapboxRegion    string        `envconfig:"MAPBOX_REGION" default:"London"`
}

// Option adjusts a loaded configuration before it is validated, typically
// with values taken from command-line flags.
type Option func(*Config)

// Load reads configuration from environment variables, applying defaults
// where unset, then applies opts and validates the result.
func Load(opts ...Option) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v, ok := os.LookupEnv("MAPBOX_ENABLED"); ok && v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints. Errors name the
// environment variable at fault.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("invalid %s (%s)", fe.Field(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	if c.Project != "" {
		for key, table := range map[string]string{"TABLE_HIRES": c.TableHires, "TABLE_DAILY_AGG": c.TableDailyAgg} {
			if strings.Contains(table, ".") {
				return fmt.Errorf("%s must be unqualified when PROJECT is set", key)
			}
		}
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// QualifiedTable returns the destination name for table, prefixed with the
// project when one is configured.
func (c *Config) QualifiedTable(table string) string {
	if c.Project == "" {
		return table
	}
	return c.Project + "." + table
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	tablePattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("table", func(fl validator.FieldLevel) bool {
		return tablePattern.MatchString(fl.Field().String())
	})
	return v
}
