package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// naText is the literal gota reads back as NA when building a series from strings.
const naText = "NaN"

func requireColumns(df dataframe.DataFrame, columns ...string) error {
	if df.Err != nil {
		return df.Err
	}
	names := df.Names()
	var missing []string
	for _, c := range columns {
		if !slices.Contains(names, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// textAt returns the trimmed text of element i, or "" for NA and blank cells.
func textAt(s series.Series, i int) string {
	e := s.Elem(i)
	if e.IsNA() {
		return ""
	}
	return strings.TrimSpace(e.String())
}

func optionalTextAt(s series.Series, i int) *string {
	v := textAt(s, i)
	if v == "" {
		return nil
	}
	return &v
}

func intAt(s series.Series, i int) *int64 {
	e := s.Elem(i)
	if e.IsNA() {
		return nil
	}
	n, ok := parseIntText(e.String())
	if !ok {
		return nil
	}
	v := int64(n)
	return &v
}

func floatAt(s series.Series, i int) *float64 {
	e := s.Elem(i)
	if e.IsNA() {
		return nil
	}
	f, ok := parseFloatText(e.String())
	if !ok {
		return nil
	}
	return &f
}

func keySet(s series.Series) map[string]int {
	set := make(map[string]int, s.Len())
	for i := 0; i < s.Len(); i++ {
		if k := textAt(s, i); k != "" {
			set[k]++
		}
	}
	return set
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// restoreNA rebuilds text and integer columns from their records. gota joins
// copy NA cells as the text "NaN" without the NA flag; series.New reads that
// text back as NA. Float columns are kept as they are, since their records
// are rounded to six decimals.
func restoreNA(df dataframe.DataFrame) dataframe.DataFrame {
	cols := make([]series.Series, 0, df.Ncol())
	for _, name := range df.Names() {
		c := df.Col(name)
		if c.Type() == series.Float {
			cols = append(cols, c)
			continue
		}
		cols = append(cols, series.New(c.Records(), c.Type(), name))
	}
	return dataframe.New(cols...)
}

// trimColumn replaces a text column with its trimmed values, keeping NA.
func trimColumn(df dataframe.DataFrame, column string) dataframe.DataFrame {
	src := df.Col(column)
	values := make([]string, src.Len())
	for i := range values {
		if v := textAt(src, i); v != "" {
			values[i] = v
			continue
		}
		values[i] = naText
	}
	return df.Mutate(series.New(values, series.String, column))
}
