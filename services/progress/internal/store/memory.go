package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
)

// MemoryProgressStore is a development-only in-memory implementation.
type MemoryProgressStore struct {
	mu   sync.RWMutex
	data map[string]map[string]progress.Map // userID -> courseID -> map
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{data: make(map[string]map[string]progress.Map)}
}

func (s *MemoryProgressStore) GetCourseProgress(_ context.Context, userID, courseID string) (progress.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.data[userID][courseID]
	out := make(progress.Map, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryProgressStore) MergeLessonProgress(_ context.Context, userID, courseID, lessonKey string, patch progress.Patch) (progress.Merged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	courses := s.data[userID]
	if courses == nil {
		courses = make(map[string]progress.Map)
		s.data[userID] = courses
	}
	m := courses[courseID]
	if m == nil {
		m = make(progress.Map)
		courses[courseID] = m
	}
	merged := m[lessonKey].Merge(patch)
	m[lessonKey] = merged.LessonProgress
	return merged, nil
}

func (s *MemoryProgressStore) ListCourseIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[userID]))
	for id, m := range s.data[userID] {
		if len(m) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryCertificateStore is a development-only in-memory implementation.
type MemoryCertificateStore struct {
	mu    sync.RWMutex
	users map[string][]certify.Certificate
	owner map[string]string
	index map[string]certify.Certificate
}

func NewMemoryCertificateStore() *MemoryCertificateStore {
	return &MemoryCertificateStore{
		users: make(map[string][]certify.Certificate),
		owner: make(map[string]string),
		index: make(map[string]certify.Certificate),
	}
}

func (s *MemoryCertificateStore) ListCertificates(_ context.Context, userID string) ([]certify.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]certify.Certificate(nil), s.users[userID]...), nil
}

func (s *MemoryCertificateStore) AppendCertificate(_ context.Context, userID string, c certify.Certificate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.owner[c.CertificateID]; taken {
		return false, nil
	}
	for _, held := range s.users[userID] {
		if held.CourseID == c.CourseID {
			return false, nil
		}
	}
	s.users[userID] = append(s.users[userID], c)
	s.owner[c.CertificateID] = userID
	return true, nil
}

func (s *MemoryCertificateStore) IndexCertificate(_ context.Context, c certify.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[c.CertificateID]; !ok {
		s.index[c.CertificateID] = c
	}
	return nil
}

func (s *MemoryCertificateStore) GetCertificate(_ context.Context, certificateID string) (certify.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.index[certificateID]
	if !ok {
		return certify.Certificate{}, ErrCertificateNotFound
	}
	return c, nil
}

func (s *MemoryCertificateStore) ListAllCertificates(_ context.Context) ([]certify.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []certify.Certificate
	for _, list := range s.users {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CertificateID < out[j].CertificateID })
	return out, nil
}

// IndexSize reports how many certificates the global index holds.
func (s *MemoryCertificateStore) IndexSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// MemoryCourseStore is a development-only in-memory catalog.
type MemoryCourseStore struct {
	mu          sync.RWMutex
	courses     map[string]course.Course
	completions map[string]int64
}

func NewMemoryCourseStore(courses ...course.Course) *MemoryCourseStore {
	s := &MemoryCourseStore{
		courses:     make(map[string]course.Course, len(courses)),
		completions: make(map[string]int64),
	}
	for _, c := range courses {
		s.courses[c.ID] = c
	}
	return s
}

func (s *MemoryCourseStore) GetCourse(_ context.Context, courseID string) (course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseID]
	if !ok {
		return course.Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (s *MemoryCourseStore) ListCourses(_ context.Context) ([]course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]course.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryCourseStore) PutCourse(_ context.Context, c course.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
	return nil
}

func (s *MemoryCourseStore) IncrementCompletions(_ context.Context, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return ErrCourseNotFound
	}
	s.completions[courseID]++
	return nil
}

func (s *MemoryCourseStore) CompletionsCount(_ context.Context, courseID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.courses[courseID]; !ok {
		return 0, ErrCourseNotFound
	}
	return s.completions[courseID], nil
}
