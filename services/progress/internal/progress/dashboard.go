package progress

import (
	"fmt"
	"strings"
	"time"
)

type Timeframe string

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
	TimeframeAll   Timeframe = "all"
)

func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return TimeframeAll, nil
	case TimeframeWeek, TimeframeMonth, TimeframeYear, TimeframeAll:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Cutoff returns the earliest last-watched time included in the window and
// false for TimeframeAll.
func (tf Timeframe) Cutoff(now time.Time) (time.Time, bool) {
	switch tf {
	case TimeframeWeek:
		return now.AddDate(0, 0, -7), true
	case TimeframeMonth:
		return now.AddDate(0, -1, 0), true
	case TimeframeYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

type CourseSummary struct {
	CourseID    string  `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	Summary     Summary `json:"summary"`
}

type Totals struct {
	CoursesInProgress     int     `json:"courses_in_progress"`
	CoursesCompleted      int     `json:"courses_completed"`
	TotalWatchTimeSeconds float64 `json:"total_watch_time_seconds"`
	CertificatesEarned    int     `json:"certificates_earned"`
}

type Dashboard struct {
	Timeframe Timeframe       `json:"timeframe"`
	Totals    Totals          `json:"totals"`
	Courses   []CourseSummary `json:"courses"`
}

// BuildDashboard totals every course and lists only those watched inside
// the timeframe. Courses never watched are listed only under TimeframeAll.
func BuildDashboard(courses []CourseSummary, certificates int, tf Timeframe, now time.Time) Dashboard {
	d := Dashboard{Timeframe: tf, Courses: []CourseSummary{}}
	d.Totals.CertificatesEarned = certificates
	cutoff, bounded := tf.Cutoff(now)
	for _, cs := range courses {
		d.Totals.TotalWatchTimeSeconds += cs.Summary.TotalWatchTimeSeconds
		if cs.Summary.IsComplete {
			d.Totals.CoursesCompleted++
		} else {
			d.Totals.CoursesInProgress++
		}
		if bounded && (cs.Summary.LastWatchedAt.IsZero() || !cs.Summary.LastWatchedAt.After(cutoff)) {
			continue
		}
		d.Courses = append(d.Courses, cs)
	}
	return d
}
