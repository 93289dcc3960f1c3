package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{"": TimeframeAll, "Week": TimeframeWeek, " month ": TimeframeMonth, "year": TimeframeYear, "all": TimeframeAll} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTimeframe("decade")
	assert.Error(t, err)
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	courses := []CourseSummary{
		{CourseID: "recent", Summary: Summary{IsComplete: true, TotalWatchTimeSeconds: 100, LastWatchedAt: now.Add(-48 * time.Hour)}},
		{CourseID: "three-weeks", Summary: Summary{TotalWatchTimeSeconds: 50, LastWatchedAt: now.AddDate(0, 0, -21)}},
		{CourseID: "old", Summary: Summary{TotalWatchTimeSeconds: 25, LastWatchedAt: now.AddDate(-2, 0, 0)}},
		{CourseID: "never", Summary: Summary{}},
	}

	ids := func(d Dashboard) []string {
		out := []string{}
		for _, c := range d.Courses {
			out = append(out, c.CourseID)
		}
		return out
	}

	week := BuildDashboard(courses, 1, TimeframeWeek, now)
	assert.Equal(t, []string{"recent"}, ids(week))
	assert.Equal(t, Totals{CoursesInProgress: 3, CoursesCompleted: 1, TotalWatchTimeSeconds: 175, CertificatesEarned: 1}, week.Totals)

	assert.Equal(t, []string{"recent", "three-weeks"}, ids(BuildDashboard(courses, 1, TimeframeMonth, now)))
	assert.Equal(t, []string{"recent", "three-weeks"}, ids(BuildDashboard(courses, 1, TimeframeYear, now)))
	assert.Equal(t, []string{"recent", "three-weeks", "old", "never"}, ids(BuildDashboard(courses, 1, TimeframeAll, now)))
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := BuildDashboard(nil, 0, TimeframeAll, time.Now())
	assert.NotNil(t, d.Courses)
	assert.Equal(t, Totals{}, d.Totals)
}
