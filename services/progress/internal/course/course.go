// Package course models authored course structure and the positional
// helpers built on it: lesson identity, lookup and "what plays next".
package course

import (
	"errors"
)

var ErrLessonNotFound = errors.New("course: lesson not found")

type Lesson struct {
	Name     string `json:"name" yaml:"name"`
	MediaURL string `json:"media_url,omitempty" yaml:"media_url"`
}

type Section struct {
	Title   string   `json:"title" yaml:"title"`
	Lessons []Lesson `json:"lessons" yaml:"lessons"`
}

// Course is authored content. Nothing in this service mutates it.
type Course struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// LessonKey is the identity progress is stored under. It is derived from
// authored titles, so renaming a section or lesson orphans its progress.
func LessonKey(sectionTitle, lessonName string) string {
	return sectionTitle + "-" + lessonName
}

// LessonRef points at one lesson by position and carries its key.
type LessonRef struct {
	SectionIndex int    `json:"section_index"`
	LessonIndex  int    `json:"lesson_index"`
	SectionTitle string `json:"section_title"`
	LessonName   string `json:"lesson_name"`
	Key          string `json:"lesson_key"`
}

func (c Course) ref(si, li int) LessonRef {
	s := c.Sections[si]
	l := s.Lessons[li]
	return LessonRef{
		SectionIndex: si,
		LessonIndex:  li,
		SectionTitle: s.Title,
		LessonName:   l.Name,
		Key:          LessonKey(s.Title, l.Name),
	}
}

// TotalLessons counts lessons across all sections.
func (c Course) TotalLessons() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Lessons)
	}
	return n
}

// LessonKeys returns every lesson key in authored order. Duplicate titles
// yield duplicate keys.
func (c Course) LessonKeys() []string {
	keys := make([]string, 0, c.TotalLessons())
	for _, s := range c.Sections {
		for _, l := range s.Lessons {
			keys = append(keys, LessonKey(s.Title, l.Name))
		}
	}
	return keys
}

// Lessons returns a ref for every lesson in authored order.
func (c Course) Lessons() []LessonRef {
	refs := make([]LessonRef, 0, c.TotalLessons())
	for si, s := range c.Sections {
		for li := range s.Lessons {
			refs = append(refs, c.ref(si, li))
		}
	}
	return refs
}

// Locate maps a stored key back to the first lesson that produces it.
// Keys left behind by renamed content report false.
func (c Course) Locate(key string) (LessonRef, bool) {
	for si, s := range c.Sections {
		for li, l := range s.Lessons {
			if LessonKey(s.Title, l.Name) == key {
				return c.ref(si, li), true
			}
		}
	}
	return LessonRef{}, false
}

// Find resolves a lesson by its authored titles.
func (c Course) Find(sectionTitle, lessonName string) (LessonRef, error) {
	for si, s := range c.Sections {
		if s.Title != sectionTitle {
			continue
		}
		for li, l := range s.Lessons {
			if l.Name == lessonName {
				return c.ref(si, li), nil
			}
		}
	}
	return LessonRef{}, ErrLessonNotFound
}

// At returns the lesson at the given position.
func (c Course) At(sectionIndex, lessonIndex int) (LessonRef, error) {
	if sectionIndex < 0 || sectionIndex >= len(c.Sections) {
		return LessonRef{}, ErrPositionOutOfRange
	}
	if lessonIndex < 0 || lessonIndex >= len(c.Sections[sectionIndex].Lessons) {
		return LessonRef{}, ErrPositionOutOfRange
	}
	return c.ref(sectionIndex, lessonIndex), nil
}

// First returns the first playable lesson, skipping empty sections.
func (c Course) First() (LessonRef, bool) {
	for si, s := range c.Sections {
		if len(s.Lessons) > 0 {
			return c.ref(si, 0), true
		}
	}
	return LessonRef{}, false
}
