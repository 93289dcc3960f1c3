package progress

import (
	"math"
	"sort"
	"time"

	"github.com/example/questor/services/progress/internal/course"
)

// Summary is derived from a course and a progress map on every read and is
// never stored.
type Summary struct {
	TotalLessons          int       `json:"total_lessons"`
	CompletedLessons      int       `json:"completed_lessons"`
	PercentComplete       int       `json:"percent_complete"`
	IsComplete            bool      `json:"is_complete"`
	LastWatchedLesson     string    `json:"last_watched_lesson,omitempty"`
	LastWatchedAt         time.Time `json:"last_watched_at,omitzero"`
	TotalWatchTimeSeconds float64   `json:"total_watch_time_seconds"`
}

// Aggregate computes the course summary. The result depends only on its
// inputs: ties on last-watched time resolve to the smallest key and watch
// time is summed in key order.
func Aggregate(c course.Course, m Map) Summary {
	var s Summary
	for _, sec := range c.Sections {
		for _, l := range sec.Lessons {
			s.TotalLessons++
			if m[course.LessonKey(sec.Title, l.Name)].Completed {
				s.CompletedLessons++
			}
		}
	}
	if s.TotalLessons > 0 {
		s.PercentComplete = int(math.Round(100 * float64(s.CompletedLessons) / float64(s.TotalLessons)))
		s.IsComplete = s.CompletedLessons == s.TotalLessons
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lp := m[k]
		s.TotalWatchTimeSeconds += lp.CurrentTimeSeconds
		if lp.LastWatchedAt.IsZero() {
			continue
		}
		if s.LastWatchedLesson == "" || lp.LastWatchedAt.After(s.LastWatchedAt) {
			s.LastWatchedLesson = k
			s.LastWatchedAt = lp.LastWatchedAt
		}
	}
	return s
}
