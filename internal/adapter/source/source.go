// Package source loads CSV inputs from local files or Google Cloud Storage.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const gcsScheme = "gs://"

// ErrNoBucket is returned for a "gs:///object" path when no default bucket is configured.
var ErrNoBucket = errors.New("gcs path has no bucket and no default bucket is configured")

// Loader reads CSV files into frames of text columns. Paths starting with
// gs:// are read from Cloud Storage; anything else is a local file.
type Loader struct {
	defaultBucket string
	logger        *slog.Logger

	mu     sync.Mutex
	client *storage.Client
}

// NewLoader creates a Loader. defaultBucket fills in "gs:///object" paths.
func NewLoader(defaultBucket string, logger *slog.Logger) *Loader {
	return &Loader{defaultBucket: defaultBucket, logger: logger}
}

// Load reads the CSV at path. Every column is kept as text; empty cells are null.
func (l *Loader) Load(ctx context.Context, path string) (dataframe.DataFrame, error) {
	r, err := l.open(ctx, path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer r.Close()

	df, err := ReadCSV(r)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read %s: %w", path, err)
	}
	l.logger.Debug("input loaded", "path", path, "rows", df.Nrow(), "columns", df.Ncol())
	return df, nil
}

// Close releases the Cloud Storage client if one was opened.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil
	}
	err := l.client.Close()
	l.client = nil
	return err
}

func (l *Loader) open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, ok, err := ParseGCSPath(path, l.defaultBucket)
	if err != nil {
		return nil, err
	}
	if !ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return f, nil
	}

	client, err := l.storageClient(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

func (l *Loader) storageClient(ctx context.Context) (*storage.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	l.client = client
	return client, nil
}

// ParseGCSPath splits a gs://bucket/object path. ok is false for paths that
// are not Cloud Storage paths.
func ParseGCSPath(path, defaultBucket string) (bucket, object string, ok bool, err error) {
	rest, found := strings.CutPrefix(path, gcsScheme)
	if !found {
		return "", "", false, nil
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		bucket = defaultBucket
	}
	if bucket == "" {
		return "", "", true, fmt.Errorf("%s: %w", path, ErrNoBucket)
	}
	if object == "" {
		return "", "", true, fmt.Errorf("%s: missing object name", path)
	}
	return bucket, object, true, nil
}

// ReadCSV parses a CSV document with a header row into a frame of text columns.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{""}),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}
