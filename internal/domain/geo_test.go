package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeLocation(t *testing.T) {
	assert.Equal(t, "51.5074, -0.1278", CompositeLocation("51.5074", "-0.1278"))
	assert.Equal(t, "51.503117, -0.153520", CompositeLocation("51.503117", "-0.153520"))
}

func TestEnrichLocation_StartRole(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n")

	out, stats, err := EnrichLocation(trips, stationsFrame(t), RoleStart, JoinInner)
	require.NoError(t, err)

	assert.Contains(t, out.Names(), ColStartLocation)
	assert.NotContains(t, out.Names(), StationLatitudeColumn)
	assert.NotContains(t, out.Names(), StationLongitudeColumn)
	assert.Equal(t, "51.50295, -0.15851", out.Col(ColStartLocation).Elem(0).String())
	assert.Equal(t, JoinStats{Site: SiteStartStation, Policy: JoinInner, Rows: 1}, stats)
}

func TestEnrichLocation_EndRoleKeepsRawDigits(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n")

	out, _, err := EnrichLocation(trips, stationsFrame(t), RoleEnd, JoinInner)
	require.NoError(t, err)

	assert.Equal(t, "51.503117, -0.153520", out.Col(ColEndLocation).Elem(0).String())
}

func TestEnrichLocation_InnerDropsUnknownStation(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n"+
		"2,300,11,01/06/2021 11:10,191,Hyde Park Corner,01/06/2021 11:00,999,Nowhere\n")

	out, stats, err := EnrichLocation(trips, stationsFrame(t), RoleStart, JoinInner)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, "1", out.Col(SourceRentalID).Elem(0).String())
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 1, stats.Dropped)
}

func TestEnrichLocation_LeftKeepsUnknownStation(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n"+
		"2,300,11,01/06/2021 11:10,191,Hyde Park Corner,01/06/2021 11:00,999,Nowhere\n")

	out, stats, err := EnrichLocation(trips, stationsFrame(t), RoleStart, JoinLeft)
	require.NoError(t, err)

	require.Equal(t, 2, out.Nrow())
	row := rowByColumn(t, out, SourceRentalID, "2")
	assert.Nil(t, optionalTextAt(out.Col(ColStartLocation), row))
	assert.Equal(t, 1, stats.Unmatched)
	assert.Zero(t, stats.Dropped)
}

func TestEnrichLocation_NullCoordinateGivesNullLocation(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n")
	stations := frameFromCSV(t, "id,latitude,longitude\n303,51.50295,\n")

	out, _, err := EnrichLocation(trips, stations, RoleStart, JoinInner)
	require.NoError(t, err)

	require.Equal(t, 1, out.Nrow())
	assert.Nil(t, optionalTextAt(out.Col(ColStartLocation), 0))
}

func TestEnrichLocation_NullsSurviveBothJoins(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,300,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n"+
		",,11,01/06/2021 11:10,191,Hyde Park Corner,01/06/2021 11:00,303,\n"+
		"3,120,12,01/06/2021 12:10,999,Closed Dock,01/06/2021 12:00,404,Blank Dock\n")
	stations := frameFromCSV(t, "id,latitude,longitude\n"+
		"303,51.50295,-0.15851\n"+
		"191,51.503117,-0.153520\n"+
		"404,51.5,\n")

	trips, err := CastInt(trips, SourceDuration)
	require.NoError(t, err)
	for _, role := range []Role{RoleStart, RoleEnd} {
		trips, _, err = EnrichLocation(trips, stations, role, JoinLeft)
		require.NoError(t, err)
	}
	canonical, err := MapSchema(trips)
	require.NoError(t, err)
	records, err := TripsFromFrame(canonical)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var unnamed, blank *TripRecord
	for i := range records {
		switch records[i].BikeID {
		case "11":
			unnamed = &records[i]
		case "12":
			blank = &records[i]
		}
	}
	require.NotNil(t, unnamed)
	require.NotNil(t, blank)

	assert.Empty(t, unnamed.RentalID)
	assert.Empty(t, unnamed.StartStationName)
	assert.Nil(t, unnamed.Duration)
	require.NotNil(t, unnamed.StartLocation)
	assert.Equal(t, "51.50295, -0.15851", *unnamed.StartLocation)

	assert.Nil(t, blank.StartLocation, "null longitude gives a null location")
	assert.Nil(t, blank.EndLocation, "unknown end station under a left join")

	daily, conflicts := AggregateDaily(records)
	assert.Empty(t, conflicts)
	for _, agg := range daily {
		if agg.StartStationID != "303" {
			continue
		}
		assert.Equal(t, int64(1), agg.HireCount, "null rental id is not a hire")
		assert.Equal(t, "Albert Gate", agg.StartStationName)
		require.NotNil(t, agg.TotalDuration)
		assert.Equal(t, int64(300), *agg.TotalDuration)
	}
}

func TestEnrichLocation_PaddedKeysMatch(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00, 303,Albert Gate\n"+
		"2,600,11,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,999 ,Nowhere\n")
	stations := frameFromCSV(t, "id,latitude,longitude\n"+
		"303 ,51.50295,-0.15851\n")

	out, stats, err := EnrichLocation(trips, stations, RoleStart, JoinInner)
	require.NoError(t, err)

	require.Equal(t, 1, out.Nrow())
	assert.Equal(t, "303", out.Col(SourceStartStationID).Elem(0).String())
	assert.Equal(t, "51.50295, -0.15851", out.Col(ColStartLocation).Elem(0).String())
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, trips.Nrow()-out.Nrow(), stats.Dropped)
}

func TestEnrichLocation_DuplicateStationKeepsFirst(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n")
	stations := frameFromCSV(t, "id,latitude,longitude\n"+
		"303,51.50295,-0.15851\n"+
		"303,0,0\n")

	out, stats, err := EnrichLocation(trips, stations, RoleStart, JoinInner)
	require.NoError(t, err)

	require.Equal(t, 1, out.Nrow())
	assert.Equal(t, "51.50295, -0.15851", out.Col(ColStartLocation).Elem(0).String())
	assert.Equal(t, 1, stats.DuplicateKeys)
}

func TestEnrichLocation_Errors(t *testing.T) {
	trips := frameFromCSV(t, tripHeader+
		"1,600,10,01/06/2021 10:10,191,Hyde Park Corner,01/06/2021 10:00,303,Albert Gate\n")

	tests := []struct {
		name     string
		stations string
		role     Role
		policy   JoinPolicy
		target   error
	}{
		{"unknown role", "id,latitude,longitude\n303,1,2\n", Role("middle"), JoinInner, ErrUnknownRole},
		{"unknown policy", "id,latitude,longitude\n303,1,2\n", RoleStart, JoinPolicy("outer"), ErrUnknownJoinPolicy},
		{"station columns missing", "id,lat,lon\n303,1,2\n", RoleStart, JoinInner, ErrMissingColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := EnrichLocation(trips, frameFromCSV(t, tt.stations), tt.role, tt.policy)
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestEnrichLocation_TripKeyMissing(t *testing.T) {
	trips := frameFromCSV(t, "Rental Id,Duration\n1,600\n")

	_, _, err := EnrichLocation(trips, stationsFrame(t), RoleEnd, JoinInner)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), SourceEndStationID)
}

func TestStationsFrame(t *testing.T) {
	df := StationsFrame([]StationReference{{ID: "1", Latitude: "51.5", Longitude: "-0.1"}})
	require.NoError(t, df.Err)
	assert.Equal(t, StationColumns, df.Names())
	assert.Equal(t, 1, df.Nrow())
	assert.Equal(t, "-0.1", df.Col(StationLongitudeColumn).Elem(0).String())
}
