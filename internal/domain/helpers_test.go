package domain

import (
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

const tripHeader = "Rental Id,Duration,Bike Id,End Date,EndStation Id,EndStation Name,Start Date,StartStation Id,StartStation Name\n"

func frameFromCSV(t *testing.T, text string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(text),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{""}),
	)
	require.NoError(t, df.Err)
	return df
}

func stationsFrame(t *testing.T) dataframe.DataFrame {
	t.Helper()
	return frameFromCSV(t, "id,name,latitude,longitude\n"+
		"303,Albert Gate,51.50295,-0.15851\n"+
		"191,Hyde Park Corner,51.503117,-0.153520\n")
}

// rowByColumn returns the index of the first row whose column equals value.
func rowByColumn(t *testing.T, df dataframe.DataFrame, column, value string) int {
	t.Helper()
	col := df.Col(column)
	for i := 0; i < col.Len(); i++ {
		if col.Elem(i).String() == value {
			return i
		}
	}
	t.Fatalf("no row with %s=%s", column, value)
	return -1
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }
