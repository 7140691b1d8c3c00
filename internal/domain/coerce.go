package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CastInt replaces a text column with an integer column. Values that do not
// parse become NA; fractional input is truncated toward zero.
func CastInt(df dataframe.DataFrame, column string) (dataframe.DataFrame, error) {
	return castColumn(df, column, series.Int, func(s string) (string, bool) {
		n, ok := parseIntText(s)
		return strconv.Itoa(n), ok
	})
}

// CastFloat replaces a text column with a float column. Values that do not
// parse become NA.
func CastFloat(df dataframe.DataFrame, column string) (dataframe.DataFrame, error) {
	return castColumn(df, column, series.Float, func(s string) (string, bool) {
		f, ok := parseFloatText(s)
		return strconv.FormatFloat(f, 'g', -1, 64), ok
	})
}

func castColumn(df dataframe.DataFrame, column string, t series.Type, parse func(string) (string, bool)) (dataframe.DataFrame, error) {
	if err := requireColumns(df, column); err != nil {
		return df, fmt.Errorf("cast %q: %w", column, err)
	}

	src := df.Col(column)
	values := make([]string, src.Len())
	for i := range values {
		text := textAt(src, i)
		if text == "" {
			values[i] = naText
			continue
		}
		v, ok := parse(text)
		if !ok {
			values[i] = naText
			continue
		}
		values[i] = v
	}

	out := df.Mutate(series.New(values, t, column))
	if out.Err != nil {
		return df, fmt.Errorf("cast %q: %w", column, out.Err)
	}
	return out, nil
}

// parseIntText parses a whole number, accepting a decimal form like "840.0".
func parseIntText(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func parseFloatText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}
