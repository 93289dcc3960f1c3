package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
)

func TestMemoryProgressStore_MergeAndRead(t *testing.T) {
	s := NewMemoryProgressStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.MergeLessonProgress(ctx, "u1", "c1", "Intro-Welcome", progress.TickPatch(10, 100, now)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got, err := s.MergeLessonProgress(ctx, "u1", "c1", "Intro-Welcome", progress.TickPatch(5, 100, now.Add(time.Second)))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got.Percent != 10 || got.CurrentTimeSeconds != 5 {
		t.Fatalf("unexpected merged record: %+v", got)
	}

	m, err := s.GetCourseProgress(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(m) != 1 || m["Intro-Welcome"] != got.LessonProgress {
		t.Fatalf("unexpected map: %+v", m)
	}

	other, _ := s.GetCourseProgress(ctx, "u2", "c1")
	if len(other) != 0 {
		t.Fatalf("users must not share progress, got %+v", other)
	}
}

func TestMemoryProgressStore_ReportsCompletionFlip(t *testing.T) {
	s := NewMemoryProgressStore()
	ctx := context.Background()

	first, _ := s.MergeLessonProgress(ctx, "u1", "c1", "k", progress.CompletePatch(time.Now()))
	second, _ := s.MergeLessonProgress(ctx, "u1", "c1", "k", progress.CompletePatch(time.Now()))
	if !first.NewlyCompleted || second.NewlyCompleted {
		t.Fatalf("expected flip only on first merge, got %v then %v", first.NewlyCompleted, second.NewlyCompleted)
	}
}

func TestMemoryProgressStore_ReadReturnsCopy(t *testing.T) {
	s := NewMemoryProgressStore()
	ctx := context.Background()
	_, _ = s.MergeLessonProgress(ctx, "u1", "c1", "k", progress.CompletePatch(time.Now()))

	m, _ := s.GetCourseProgress(ctx, "u1", "c1")
	delete(m, "k")

	again, _ := s.GetCourseProgress(ctx, "u1", "c1")
	if len(again) != 1 {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestMemoryProgressStore_ConcurrentMergesKeepMax(t *testing.T) {
	s := NewMemoryProgressStore()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i <= 100; i++ {
		wg.Add(1)
		go func(pct int) {
			defer wg.Done()
			_, _ = s.MergeLessonProgress(ctx, "u1", "c1", "k", progress.TickPatch(float64(pct), 100, now))
		}(i)
	}
	wg.Wait()

	m, _ := s.GetCourseProgress(ctx, "u1", "c1")
	if m["k"].Percent != 100 || !m["k"].Completed {
		t.Fatalf("expected max-merged record, got %+v", m["k"])
	}
}

func TestMemoryProgressStore_ListCourseIDs(t *testing.T) {
	s := NewMemoryProgressStore()
	ctx := context.Background()
	_, _ = s.MergeLessonProgress(ctx, "u1", "rust-1", "k", progress.Patch{})
	_, _ = s.MergeLessonProgress(ctx, "u1", "go-101", "k", progress.Patch{})
	_, _ = s.MergeLessonProgress(ctx, "u2", "py-1", "k", progress.Patch{})

	ids, _ := s.ListCourseIDs(ctx, "u1")
	if len(ids) != 2 || ids[0] != "go-101" || ids[1] != "rust-1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestMemoryCertificateStore_AppendIsIdempotent(t *testing.T) {
	s := NewMemoryCertificateStore()
	ctx := context.Background()
	c := certify.Certificate{CertificateID: "CERT-1", CourseID: "c1", UserID: "u1"}

	ok, err := s.AppendCertificate(ctx, "u1", c)
	if err != nil || !ok {
		t.Fatalf("first append: ok=%v err=%v", ok, err)
	}
	ok, _ = s.AppendCertificate(ctx, "u1", c)
	if ok {
		t.Fatal("same certificate must not be appended twice")
	}
	other := c
	other.CertificateID = "CERT-2"
	ok, _ = s.AppendCertificate(ctx, "u1", other)
	if ok {
		t.Fatal("second certificate for the same course must be rejected")
	}

	list, _ := s.ListCertificates(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("expected one certificate, got %d", len(list))
	}

	foreign := c
	foreign.UserID = "u2"
	if ok, _ = s.AppendCertificate(ctx, "u2", foreign); ok {
		t.Fatal("certificate ids are unique across learners")
	}
}

func TestMemoryCertificateStore_Index(t *testing.T) {
	s := NewMemoryCertificateStore()
	ctx := context.Background()

	if _, err := s.GetCertificate(ctx, "missing"); err != ErrCertificateNotFound {
		t.Fatalf("expected ErrCertificateNotFound, got %v", err)
	}
	c := certify.Certificate{CertificateID: "CERT-1", CourseID: "c1", UserID: "u1"}
	_ = s.IndexCertificate(ctx, c)
	_ = s.IndexCertificate(ctx, c)
	if s.IndexSize() != 1 {
		t.Fatalf("expected one index entry, got %d", s.IndexSize())
	}
	got, err := s.GetCertificate(ctx, "CERT-1")
	if err != nil || got != c {
		t.Fatalf("unexpected lookup: %+v %v", got, err)
	}
}

func TestMemoryCourseStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCourseStore(course.Course{ID: "c1", Title: "One"})

	if _, err := s.GetCourse(ctx, "nope"); err != ErrCourseNotFound {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
	if err := s.IncrementCompletions(ctx, "c1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	_ = s.IncrementCompletions(ctx, "c1")
	n, _ := s.CompletionsCount(ctx, "c1")
	if n != 2 {
		t.Fatalf("expected 2 completions, got %d", n)
	}
	if err := s.IncrementCompletions(ctx, "nope"); err != ErrCourseNotFound {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}

	_ = s.PutCourse(ctx, course.Course{ID: "a0", Title: "Zero"})
	list, _ := s.ListCourses(ctx)
	if len(list) != 2 || list[0].ID != "a0" {
		t.Fatalf("unexpected course list: %+v", list)
	}
}
