package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextLesson_WithinSection(t *testing.T) {
	step, err := NextLesson(twoByTwo(), 0, 0)
	require.NoError(t, err)
	require.False(t, step.Done)
	assert.Equal(t, "Intro-Setup", step.Next.Key)
}

// Scenario C: last lesson of a non-final section advances to the next
// section; last lesson of the last section ends the course.
func TestNextLesson_SectionBoundaryAndEnd(t *testing.T) {
	c := twoByTwo()

	step, err := NextLesson(c, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, step.Next)
	assert.Equal(t, 1, step.Next.SectionIndex)
	assert.Equal(t, 0, step.Next.LessonIndex)
	assert.Equal(t, "Types-Structs", step.Next.Key)

	step, err = NextLesson(c, 1, 1)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Nil(t, step.Next)
}

func TestNextLesson_SkipsEmptySections(t *testing.T) {
	c := Course{Sections: []Section{
		{Title: "A", Lessons: []Lesson{{Name: "1"}}},
		{Title: "Empty"},
		{Title: "B", Lessons: []Lesson{{Name: "2"}}},
		{Title: "Trailing"},
	}}

	step, err := NextLesson(c, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "B-2", step.Next.Key)

	step, err = NextLesson(c, 2, 0)
	require.NoError(t, err)
	assert.True(t, step.Done)
}

func TestNextLesson_OutOfRange(t *testing.T) {
	c := twoByTwo()
	for _, pos := range [][2]int{{-1, 0}, {2, 0}, {0, 2}, {0, -1}} {
		_, err := NextLesson(c, pos[0], pos[1])
		assert.ErrorIs(t, err, ErrPositionOutOfRange, "position %v", pos)
	}
	_, err := NextLesson(Course{}, 0, 0)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestNextLesson_Deterministic(t *testing.T) {
	c := twoByTwo()
	a, _ := NextLesson(c, 0, 1)
	b, _ := NextLesson(c, 0, 1)
	assert.Equal(t, a, b)
}

func TestResumePoint(t *testing.T) {
	c := twoByTwo()

	ref, ok := ResumePoint(c, "Types-Interfaces")
	require.True(t, ok)
	assert.Equal(t, 1, ref.SectionIndex)
	assert.Equal(t, 1, ref.LessonIndex)

	ref, ok = ResumePoint(c, "Removed-Lesson")
	require.True(t, ok)
	assert.Equal(t, "Intro-Welcome", ref.Key, "stale key falls back to first lesson")

	ref, ok = ResumePoint(c, "")
	require.True(t, ok)
	assert.Equal(t, "Intro-Welcome", ref.Key)

	_, ok = ResumePoint(Course{}, "x")
	assert.False(t, ok)
}
