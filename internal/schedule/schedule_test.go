package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtrgen/internal/model"
)

const scheduleCSV = `Date,Meeting location,Meeting point,Surface,Special event,8k Route,8k Strava link,5k Route,5k Strava link,5k distance (km),5k elevation (m),5k landmarks
2025-06-19,Radcliffe market,Old town hall,"Road, after dark",,Riverside,https://x/8k,Park Loop,https://x/5k,5.2,34,Riverside path; Close park
2025-06-26,,The library,Trail,Pride social,Canal Out-and-Back,https://x/canal,,,,,
,,,Road,,Ghost Route,https://x/ghost,,,,,
not-a-date,,,Road,,Bad Route,https://x/bad,,,,,
2025-07-03,,,nan,n/a,Hills Special,https://x/hills,Short Spin,https://x/short,-,-,
`

func parseFixture(t *testing.T) []model.RunRecord {
	t.Helper()
	records, err := Parse(strings.NewReader(scheduleCSV))
	require.NoError(t, err)
	return records
}

func TestParse(t *testing.T) {
	records := parseFixture(t)

	t.Run("rows without a parseable date are skipped, not fatal", func(t *testing.T) {
		require.Len(t, records, 3)
	})

	t.Run("meeting location wins over meeting point", func(t *testing.T) {
		assert.Equal(t, "Radcliffe market", records[0].MeetingPoint)
	})

	t.Run("meeting point is used when location is blank", func(t *testing.T) {
		assert.Equal(t, "The library", records[1].MeetingPoint)
	})

	t.Run("route slots are discovered from the header in column order", func(t *testing.T) {
		require.Len(t, records[0].Routes, 2)
		assert.Equal(t, "8k", records[0].Routes[0].Label)
		assert.Equal(t, "Riverside", records[0].Routes[0].Name)
		assert.Equal(t, "https://x/8k", records[0].Routes[0].URL)
		assert.Equal(t, "5k", records[0].Routes[1].Label)
	})

	t.Run("optional metrics and landmarks columns", func(t *testing.T) {
		five := records[0].Routes[1]
		require.NotNil(t, five.DistanceKm)
		require.NotNil(t, five.ElevationM)
		assert.InDelta(t, 5.2, *five.DistanceKm, 0.001)
		assert.InDelta(t, 34, *five.ElevationM, 0.001)
		assert.Equal(t, []string{"Riverside path", "Close park"}, five.Landmarks)
	})

	t.Run("empty route slot carries no name or url", func(t *testing.T) {
		five := records[1].Routes[1]
		assert.False(t, five.Included())
	})

	t.Run("NaN-like cells normalize to empty", func(t *testing.T) {
		rec := records[2]
		assert.Equal(t, "", rec.SurfaceNotes)
		assert.Equal(t, "", rec.SpecialEvent)
		assert.Nil(t, rec.Routes[1].DistanceKm)
		assert.Nil(t, rec.Routes[1].ElevationM)
	})

	t.Run("event text is preserved for the composer to scan", func(t *testing.T) {
		assert.Equal(t, "Pride social", records[1].SpecialEvent)
	})
}

func TestParse_DateLayouts(t *testing.T) {
	csv := "Date\n19/06/2025\nThursday 19 June 2025\n19 June 2025\n"
	records, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC), rec.Date)
	}
}

func TestNextRunDay(t *testing.T) {
	// 2025-06-19 is a Thursday.
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-week advances to the coming Thursday",
			now:  time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC), // Wednesday
			want: time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "on the run weekday advances a full week",
			now:  time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC), // Thursday
			want: time.Date(2025, 6, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day after the run wraps to the next week",
			now:  time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC), // Friday
			want: time.Date(2025, 6, 26, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextRunDay(tc.now, time.Thursday)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Format("2006-01-02"), got.Format("2006-01-02"))
		})
	}
}

func TestUpcoming(t *testing.T) {
	records := parseFixture(t)

	t.Run("filters to records on or after the next run day", func(t *testing.T) {
		now := time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC) // Thursday: cutover is the 26th
		upcoming, err := Upcoming(records, now, time.Thursday)
		require.NoError(t, err)
		require.Len(t, upcoming, 2)
		assert.Equal(t, "2025-06-26", upcoming[0].Date.Format("2006-01-02"))
		assert.Equal(t, "2025-07-03", upcoming[1].Date.Format("2006-01-02"))
	})

	t.Run("includes the cutover day itself", func(t *testing.T) {
		now := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC) // Wednesday: cutover is the 19th
		upcoming, err := Upcoming(records, now, time.Thursday)
		require.NoError(t, err)
		require.Len(t, upcoming, 3)
		assert.Equal(t, "2025-06-19", upcoming[0].Date.Format("2006-01-02"))
	})

	t.Run("zero survivors escalates to ErrNoUpcomingRuns", func(t *testing.T) {
		now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := Upcoming(records, now, time.Thursday)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrNoUpcomingRuns)
	})

	t.Run("empty input escalates to ErrNoUpcomingRuns", func(t *testing.T) {
		_, err := Upcoming(nil, time.Now(), time.Thursday)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrNoUpcomingRuns)
	})
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday("Thursday")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, wd)

	_, err = ParseWeekday("someday")
	require.Error(t, err)
}
