// Package store persists lesson progress, certificates and the course
// catalog. Every backend applies the merge rules of progress.LessonProgress.Apply.
package store

import (
	"context"
	"errors"

	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
)

var (
	ErrCourseNotFound      = errors.New("course not found")
	ErrCertificateNotFound = errors.New("certificate not found")
)

// ProgressStore holds one progress map per (user, course).
type ProgressStore interface {
	GetCourseProgress(ctx context.Context, userID, courseID string) (progress.Map, error)
	// MergeLessonProgress applies patch atomically at lesson granularity and
	// returns the merged record.
	MergeLessonProgress(ctx context.Context, userID, courseID, lessonKey string, patch progress.Patch) (progress.Merged, error)
	// ListCourseIDs returns every course the user has recorded progress in.
	ListCourseIDs(ctx context.Context, userID string) ([]string, error)
}

// CertificateStore keeps each user's certificate list plus a global index
// keyed by certificate id.
type CertificateStore interface {
	ListCertificates(ctx context.Context, userID string) ([]certify.Certificate, error)
	AppendCertificate(ctx context.Context, userID string, c certify.Certificate) (bool, error)
	IndexCertificate(ctx context.Context, c certify.Certificate) error
	GetCertificate(ctx context.Context, certificateID string) (certify.Certificate, error)
	// ListAllCertificates walks every user list; used to rebuild the index.
	ListAllCertificates(ctx context.Context) ([]certify.Certificate, error)
}

// CourseStore reads authored courses. PutCourse exists for seeding only.
type CourseStore interface {
	GetCourse(ctx context.Context, courseID string) (course.Course, error)
	ListCourses(ctx context.Context) ([]course.Course, error)
	PutCourse(ctx context.Context, c course.Course) error
	IncrementCompletions(ctx context.Context, courseID string) error
	CompletionsCount(ctx context.Context, courseID string) (int64, error)
}
