// Package progress holds per-lesson progress records, their merge rules and
// the course-level aggregation every view reads through.
package progress

import (
	"math"
	"time"
)

// CompletionThreshold is the tick percent at which a lesson counts as watched.
const CompletionThreshold = 95

// LessonProgress is one user's recorded state for one lesson.
type LessonProgress struct {
	Completed          bool      `json:"completed"`
	Percent            int       `json:"percent"`
	CurrentTimeSeconds float64   `json:"current_time_seconds"`
	LastWatchedAt      time.Time `json:"last_watched_at"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
}

// Map is the progress of one user in one course, keyed by lesson key.
type Map map[string]LessonProgress

// Patch is a partial update. Nil fields leave the stored value untouched.
type Patch struct {
	Completed          *bool
	Percent            *int
	CurrentTimeSeconds *float64
	LastWatchedAt      *time.Time
	LastUpdatedAt      *time.Time
}

// Merged is what a store returns for one merge. NewlyCompleted is true
// only for the merge that flipped Completed from false to true.
type Merged struct {
	LessonProgress
	NewlyCompleted bool
}

// Merge applies patch and reports whether it completed the lesson.
func (p LessonProgress) Merge(patch Patch) Merged {
	next := p.Apply(patch)
	return Merged{LessonProgress: next, NewlyCompleted: next.Completed && !p.Completed}
}

// Apply merges patch into p: percent and timestamps keep the maximum,
// completed is OR-ed and the playback position is last-write-wins.
// Every store implements exactly these rules.
func (p LessonProgress) Apply(patch Patch) LessonProgress {
	if patch.Percent != nil {
		p.Percent = max(p.Percent, clampPercent(*patch.Percent))
	}
	if patch.Completed != nil {
		p.Completed = p.Completed || *patch.Completed
	}
	if patch.CurrentTimeSeconds != nil {
		p.CurrentTimeSeconds = *patch.CurrentTimeSeconds
	}
	if patch.LastWatchedAt != nil && patch.LastWatchedAt.After(p.LastWatchedAt) {
		p.LastWatchedAt = *patch.LastWatchedAt
	}
	if patch.LastUpdatedAt != nil && patch.LastUpdatedAt.After(p.LastUpdatedAt) {
		p.LastUpdatedAt = *patch.LastUpdatedAt
	}
	return p
}

// PercentOf converts a playback position into a 0..100 percent, rounding
// half away from zero. duration must be positive.
func PercentOf(currentSeconds, durationSeconds float64) int {
	pct := math.Round(100 * currentSeconds / durationSeconds)
	switch {
	case !(pct > 0):
		return 0
	case pct >= 100:
		return 100
	}
	return int(pct)
}

// TickPatch builds the merge for a periodic playback tick.
func TickPatch(currentSeconds, durationSeconds float64, now time.Time) Patch {
	pct := PercentOf(currentSeconds, durationSeconds)
	done := pct >= CompletionThreshold
	return Patch{
		Completed:          &done,
		Percent:            &pct,
		CurrentTimeSeconds: &currentSeconds,
		LastWatchedAt:      &now,
		LastUpdatedAt:      &now,
	}
}

// CompletePatch builds the merge for a finished or manually completed lesson.
func CompletePatch(now time.Time) Patch {
	done := true
	pct := 100
	return Patch{
		Completed:     &done,
		Percent:       &pct,
		LastWatchedAt: &now,
		LastUpdatedAt: &now,
	}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
