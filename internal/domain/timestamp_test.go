package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTripTime(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
		ok       bool
	}{
		{"25/12/2021 14:30", time.Date(2021, 12, 25, 14, 30, 0, 0, time.UTC), true},
		{"01/06/2021 00:00", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{" 02/06/2021 23:59 ", time.Date(2021, 6, 2, 23, 59, 0, 0, time.UTC), true},
		{"2021-12-25 14:30", time.Time{}, false},
		{"25/12/2021", time.Time{}, false},
		{"32/01/2021 10:00", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTripTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	df := frameFromCSV(t, "Rental Id,Start Date\n"+
		"1,25/12/2021 14:30\n"+
		"2,not a date\n"+
		"3,\n")

	out, err := NormalizeTimestamp(df, SourceStartDate)
	require.NoError(t, err)

	col := out.Col(SourceStartDate)
	assert.Equal(t, "2021-12-25T14:30:00Z", textAt(col, 0))
	assert.True(t, col.Elem(1).IsNA())
	assert.True(t, col.Elem(2).IsNA())
	assert.Equal(t, df.Names(), out.Names())
}

func TestNormalizeTimestamp_MissingColumn(t *testing.T) {
	df := frameFromCSV(t, "Rental Id\n1\n")

	_, err := NormalizeTimestamp(df, SourceEndDate)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestTruncateToDate(t *testing.T) {
	in := time.Date(2021, 6, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), truncateToDate(in))
}
