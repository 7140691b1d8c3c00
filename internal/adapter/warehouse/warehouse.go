// Package warehouse appends trips and daily aggregates to a SQL database.
// Postgres is reached through the pgx database/sql driver; SQLite through
// mattn/go-sqlite3.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
)

const defaultBatchSize = 500

// maxParams bounds the bind parameters in one statement, below the limits of
// both Postgres and SQLite.
const maxParams = 32766

// Warehouse is an append-only SQL sink. Tables are created on first use;
// existing rows are never updated or deduplicated.
type Warehouse struct {
	db        *sql.DB
	dialect   Dialect
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	created map[string]bool
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string, batchSize int, logger *slog.Logger) (*Warehouse, error) {
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect, batchSize, logger), nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, batchSize int, logger *slog.Logger) *Warehouse {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Warehouse{
		db:        db,
		dialect:   dialect,
		batchSize: batchSize,
		logger:    logger,
		created:   make(map[string]bool),
	}
}

// Close closes the database.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// AppendTrips appends trips to table in one transaction.
func (w *Warehouse) AppendTrips(ctx context.Context, table string, trips []domain.TripRecord) error {
	rows := make([][]any, len(trips))
	for i := range trips {
		rows[i] = w.tripValues(&trips[i])
	}
	return w.appendRows(ctx, table, tripColumns, rows)
}

// AppendDailyAggregates appends daily aggregates to table in one transaction.
func (w *Warehouse) AppendDailyAggregates(ctx context.Context, table string, aggs []domain.DailyStationAggregate) error {
	rows := make([][]any, len(aggs))
	for i := range aggs {
		rows[i] = w.dailyValues(&aggs[i])
	}
	return w.appendRows(ctx, table, dailyColumns, rows)
}

func (w *Warehouse) appendRows(ctx context.Context, table string, cols []column, rows [][]any) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append to %s: %w", table, err)
	}

	if err := w.ensureTable(ctx, tx, table, cols); err != nil {
		_ = tx.Rollback()
		return err
	}

	size := min(w.batchSize, maxParams/len(cols))
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(cols))
		for _, r := range chunk {
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, insertStatement(w.dialect, table, cols, len(chunk)), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append to %s: %w", table, err)
	}
	w.markCreated(table)
	w.logger.Debug("rows appended", "table", table, "rows", len(rows), "dialect", w.dialect)
	return nil
}

func (w *Warehouse) ensureTable(ctx context.Context, tx *sql.Tx, table string, cols []column) error {
	w.mu.Lock()
	done := w.created[table]
	w.mu.Unlock()
	if done {
		return nil
	}

	if schema := w.dialect.schemaOf(table); schema != "" {
		if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema)); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	if _, err := tx.ExecContext(ctx, createTableStatement(w.dialect, table, cols)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (w *Warehouse) markCreated(table string) {
	w.mu.Lock()
	w.created[table] = true
	w.mu.Unlock()
}

func (w *Warehouse) tripValues(t *domain.TripRecord) []any {
	return []any{
		nullText(t.RentalID),
		nullInt(t.Duration),
		nullText(t.BikeID),
		w.dialect.timestamp(t.StartDate),
		nullText(t.StartStationID),
		nullText(t.StartStationName),
		nullTextPtr(t.StartLocation),
		w.dialect.timestamp(t.EndDate),
		nullText(t.EndStationID),
		nullText(t.EndStationName),
		nullTextPtr(t.EndLocation),
	}
}

func (w *Warehouse) dailyValues(a *domain.DailyStationAggregate) []any {
	return []any{
		w.dialect.date(a.Date),
		nullText(a.StartStationID),
		nullText(a.StartStationName),
		nullTextPtr(a.StartLocation),
		nullInt(a.TotalDuration),
		a.HireCount,
		nullFloat(a.Prcp),
		nullFloat(a.Tavg),
	}
}

func nullText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTextPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullText(*s)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
