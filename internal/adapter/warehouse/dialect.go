package warehouse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
)

// Dialect selects the SQL flavor and database/sql driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) driver() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unknown warehouse dialect %q", d)
	}
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// quoteTable quotes a destination name. Postgres treats "schema.table" as a
// schema-qualified table; SQLite has no schemas, so the dotted name is one
// identifier.
func (d Dialect) quoteTable(table string) string {
	if d == Postgres {
		parts := strings.Split(table, ".")
		for i, p := range parts {
			parts[i] = quoteIdent(p)
		}
		return strings.Join(parts, ".")
	}
	return quoteIdent(table)
}

// schemaOf returns the schema part of a Postgres "schema.table" name.
func (d Dialect) schemaOf(table string) string {
	if d != Postgres {
		return ""
	}
	if i := strings.LastIndex(table, "."); i > 0 {
		return table[:i]
	}
	return ""
}

// timestamp renders a time for the dialect: native for Postgres, RFC 3339
// text for SQLite.
func (d Dialect) timestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	if d == SQLite {
		return t.UTC().Format(time.RFC3339)
	}
	return t.UTC()
}

func (d Dialect) date(t *time.Time) any {
	if t == nil {
		return nil
	}
	if d == SQLite {
		return t.UTC().Format(domain.WeatherDateLayout)
	}
	return t.UTC()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

type column struct {
	name       string
	postgres   string
	sqliteType string
}

func (c column) typeFor(d Dialect) string {
	if d == Postgres {
		return c.postgres
	}
	return c.sqliteType
}

var tripColumns = []column{
	{domain.ColRentalID, "TEXT", "TEXT"},
	{domain.ColDuration, "BIGINT", "INTEGER"},
	{domain.ColBikeID, "TEXT", "TEXT"},
	{domain.ColStartDate, "TIMESTAMPTZ", "TEXT"},
	{domain.ColStartStationID, "TEXT", "TEXT"},
	{domain.ColStartStationName, "TEXT", "TEXT"},
	{domain.ColStartLocation, "TEXT", "TEXT"},
	{domain.ColEndDate, "TIMESTAMPTZ", "TEXT"},
	{domain.ColEndStationID, "TEXT", "TEXT"},
	{domain.ColEndStationName, "TEXT", "TEXT"},
	{domain.ColEndLocation, "TEXT", "TEXT"},
}

var dailyColumns = []column{
	{domain.ColStartDate, "DATE", "TEXT"},
	{domain.ColStartStationID, "TEXT", "TEXT"},
	{domain.ColStartStationName, "TEXT", "TEXT"},
	{domain.ColStartLocation, "TEXT", "TEXT"},
	{domain.ColTotalDuration, "BIGINT", "INTEGER"},
	{domain.ColHireCount, "BIGINT NOT NULL", "INTEGER NOT NULL"},
	{domain.ColPrcp, "DOUBLE PRECISION", "REAL"},
	{domain.ColTavg, "DOUBLE PRECISION", "REAL"},
}

func createTableStatement(d Dialect, table string, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c.name) + " " + c.typeFor(d)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quoteTable(table), strings.Join(defs, ",\n\t"))
}

// insertStatement builds a multi-row INSERT for rows rows of cols.
func insertStatement(d Dialect, table string, cols []column, rows int) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.quoteTable(table), strings.Join(names, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
