package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TripTimeLayout is the journey extract date format, dd/MM/yyyy HH:mm.
const TripTimeLayout = "02/01/2006 15:04"

// ParseTripTime parses a journey extract timestamp as UTC.
func ParseTripTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(TripTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeTimestamp replaces a journey date column with its RFC 3339 form.
// Rows that do not match [TripTimeLayout] become NA.
func NormalizeTimestamp(df dataframe.DataFrame, column string) (dataframe.DataFrame, error) {
	if err := requireColumns(df, column); err != nil {
		return df, fmt.Errorf("normalize %q: %w", column, err)
	}

	src := df.Col(column)
	values := make([]string, src.Len())
	for i := range values {
		t, ok := ParseTripTime(textAt(src, i))
		if !ok {
			values[i] = naText
			continue
		}
		values[i] = t.Format(time.RFC3339)
	}

	out := df.Mutate(series.New(values, series.String, column))
	if out.Err != nil {
		return df, fmt.Errorf("normalize %q: %w", column, out.Err)
	}
	return out, nil
}

// truncateToDate drops the time of day, keeping the UTC calendar date.
func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
