package course

import "errors"

var ErrPositionOutOfRange = errors.New("course: position out of range")

// Step is the result of NextLesson. Done means the course has no lesson
// after the given position.
type Step struct {
	Done bool       `json:"done"`
	Next *LessonRef `json:"next,omitempty"`
}

// NextLesson walks forward from (sectionIndex, lessonIndex) in authored
// order. It is positional only and never consults progress. Sections
// without lessons are skipped.
func NextLesson(c Course, sectionIndex, lessonIndex int) (Step, error) {
	if _, err := c.At(sectionIndex, lessonIndex); err != nil {
		return Step{}, err
	}
	if lessonIndex+1 < len(c.Sections[sectionIndex].Lessons) {
		next := c.ref(sectionIndex, lessonIndex+1)
		return Step{Next: &next}, nil
	}
	for si := sectionIndex + 1; si < len(c.Sections); si++ {
		if len(c.Sections[si].Lessons) > 0 {
			next := c.ref(si, 0)
			return Step{Next: &next}, nil
		}
	}
	return Step{Done: true}, nil
}

// ResumePoint picks where the player should open: the lesson stored under
// lastWatchedKey, or the first lesson when the key is empty or stale.
// It reports false only for a course without lessons.
func ResumePoint(c Course, lastWatchedKey string) (LessonRef, bool) {
	if lastWatchedKey != "" {
		if ref, ok := c.Locate(lastWatchedKey); ok {
			return ref, true
		}
	}
	return c.First()
}
