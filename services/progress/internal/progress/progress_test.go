package progress

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPercentOf(t *testing.T) {
	tests := []struct {
		cur, dur float64
		want     int
	}{
		{0, 100, 0},
		{10, 100, 10},
		{94, 100, 94},
		{94.5, 100, 95},
		{1, 3, 33},
		{2, 3, 67},
		{150, 100, 100},
		{-5, 100, 0},
		{1e300, 1, 100},
		{1e300, 1e-300, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentOf(tt.cur, tt.dur), "PercentOf(%v, %v)", tt.cur, tt.dur)
	}
}

func TestCompletionThreshold(t *testing.T) {
	at94 := LessonProgress{}.Apply(TickPatch(94, 100, t0))
	assert.Equal(t, 94, at94.Percent)
	assert.False(t, at94.Completed)

	at95 := LessonProgress{}.Apply(TickPatch(95, 100, t0))
	assert.Equal(t, 95, at95.Percent)
	assert.True(t, at95.Completed)
}

func TestMerge_NewlyCompletedOnlyOnFlip(t *testing.T) {
	m := LessonProgress{}.Merge(TickPatch(50, 100, t0))
	assert.False(t, m.NewlyCompleted)

	m = m.LessonProgress.Merge(TickPatch(96, 100, t0))
	assert.True(t, m.NewlyCompleted)

	m = m.LessonProgress.Merge(CompletePatch(t0))
	assert.False(t, m.NewlyCompleted)
	assert.True(t, m.Completed)
}

func TestTickPatch_FarPastEndCompletes(t *testing.T) {
	lp := LessonProgress{}.Apply(TickPatch(1e300, 1, t0))
	assert.Equal(t, 100, lp.Percent)
	assert.True(t, lp.Completed)
}

// Scenario B: a rewind lowers the reported position but not the percent.
func TestApply_RewindKeepsPercent(t *testing.T) {
	lp := LessonProgress{}.Apply(TickPatch(10, 100, t0))
	lp = lp.Apply(TickPatch(5, 100, t0.Add(5*time.Second)))

	assert.Equal(t, 10, lp.Percent)
	assert.False(t, lp.Completed)
	assert.Equal(t, 5.0, lp.CurrentTimeSeconds)
	assert.Equal(t, t0.Add(5*time.Second), lp.LastWatchedAt)
}

func TestApply_CompletePatch(t *testing.T) {
	lp := LessonProgress{CurrentTimeSeconds: 42}.Apply(CompletePatch(t0))
	assert.True(t, lp.Completed)
	assert.Equal(t, 100, lp.Percent)
	assert.Equal(t, 42.0, lp.CurrentTimeSeconds, "completion keeps the last position")
	assert.Equal(t, t0, lp.LastUpdatedAt)
}

func TestApply_TimestampsNeverMoveBackwards(t *testing.T) {
	lp := LessonProgress{}.Apply(TickPatch(10, 100, t0))
	lp = lp.Apply(TickPatch(20, 100, t0.Add(-time.Minute)))
	assert.Equal(t, t0, lp.LastWatchedAt)
	assert.Equal(t, t0, lp.LastUpdatedAt)
}

func TestApply_EmptyPatchIsIdentity(t *testing.T) {
	lp := LessonProgress{Completed: true, Percent: 60, CurrentTimeSeconds: 3, LastWatchedAt: t0, LastUpdatedAt: t0}
	assert.Equal(t, lp, lp.Apply(Patch{}))
}

func TestApply_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		var lp LessonProgress
		now := t0
		for i := 0; i < 30; i++ {
			prev := lp
			now = now.Add(5 * time.Second)
			if rng.Intn(10) == 0 {
				lp = lp.Apply(CompletePatch(now))
			} else {
				lp = lp.Apply(TickPatch(rng.Float64()*120, 100, now))
			}
			require.GreaterOrEqual(t, lp.Percent, prev.Percent)
			if prev.Completed {
				require.True(t, lp.Completed)
			}
			require.LessOrEqual(t, lp.Percent, 100)
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	p := TickPatch(30, 60, t0)
	once := LessonProgress{}.Apply(p)
	assert.Equal(t, once, once.Apply(p))
}
