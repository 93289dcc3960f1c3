package certify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/questor/internal/platform/analytics"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/progress"
)

type State string

const (
	StateInProgress             State = "in_progress"
	StateCompletedNoCertificate State = "completed_no_certificate"
	StateCompletedCertified     State = "completed_certified"
)

type CourseReader interface {
	GetCourse(ctx context.Context, courseID string) (course.Course, error)
}

type ProgressReader interface {
	GetCourseProgress(ctx context.Context, userID, courseID string) (progress.Map, error)
}

// Ledger is where certificates live: the learner's own list is the source of
// truth and the global index is a lookup convenience.
type Ledger interface {
	ListCertificates(ctx context.Context, userID string) ([]Certificate, error)
	// AppendCertificate reports false when the learner already holds a
	// certificate for the course or the id is taken.
	AppendCertificate(ctx context.Context, userID string, c Certificate) (bool, error)
	IndexCertificate(ctx context.Context, c Certificate) error
}

type CompletionCounter interface {
	IncrementCompletions(ctx context.Context, courseID string) error
}

// Result describes where a (learner, course) pair stands after evaluation.
// Issued is true only for the call that created the certificate.
type Result struct {
	State       State            `json:"state"`
	Summary     progress.Summary `json:"summary"`
	Certificate *Certificate     `json:"certificate,omitempty"`
	Issued      bool             `json:"issued"`
}

type Issuer struct {
	courses  CourseReader
	progress ProgressReader
	ledger   Ledger
	counter  CompletionCounter
	events   *analytics.Publisher
	log      *zap.Logger
	newID    IDFunc
	now      func() time.Time
}

type Option func(*Issuer)

func WithIDFunc(fn IDFunc) Option { return func(i *Issuer) { i.newID = fn } }

func WithClock(now func() time.Time) Option { return func(i *Issuer) { i.now = now } }

func WithEvents(p *analytics.Publisher) Option { return func(i *Issuer) { i.events = p } }

func NewIssuer(courses CourseReader, prog ProgressReader, ledger Ledger, counter CompletionCounter, log *zap.Logger, opts ...Option) *Issuer {
	if log == nil {
		log = zap.NewNop()
	}
	i := &Issuer{
		courses:  courses,
		progress: prog,
		ledger:   ledger,
		counter:  counter,
		log:      log,
		newID:    DeterministicID,
		now:      time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Evaluate recomputes the course summary and issues the certificate on the
// first evaluation that sees the course complete. Later calls are no-ops.
func (i *Issuer) Evaluate(ctx context.Context, learner Learner, courseID string) (Result, error) {
	c, err := i.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Result{}, fmt.Errorf("load course: %w", err)
	}
	m, err := i.progress.GetCourseProgress(ctx, learner.UserID, courseID)
	if err != nil {
		return Result{}, fmt.Errorf("load progress: %w", err)
	}
	res := Result{State: StateInProgress, Summary: progress.Aggregate(c, m)}
	if !res.Summary.IsComplete {
		return res, nil
	}
	res.State = StateCompletedNoCertificate

	held, err := i.ledger.ListCertificates(ctx, learner.UserID)
	if err != nil {
		return res, fmt.Errorf("list certificates: %w", err)
	}
	for _, h := range held {
		if h.CourseID == courseID {
			res.State = StateCompletedCertified
			res.Certificate = &h
			return res, nil
		}
	}

	now := i.now().UTC()
	cert := Certificate{
		CertificateID: i.newID(learner.UserID, courseID, now),
		CourseID:      courseID,
		CourseName:    c.Title,
		UserID:        learner.UserID,
		UserName:      learner.displayName(),
		IssueDate:     now,
	}
	inserted, err := i.ledger.AppendCertificate(ctx, learner.UserID, cert)
	if err != nil {
		return res, fmt.Errorf("append certificate: %w", err)
	}
	if !inserted {
		// A concurrent evaluation won; report what it stored. An id taken by
		// another learner leaves nothing stored, so the next write retries.
		existing, ok := i.lookup(ctx, learner.UserID, courseID)
		if !ok {
			i.log.Warn("certificate not stored", zap.String("user_id", learner.UserID),
				zap.String("course_id", courseID), zap.String("certificate_id", cert.CertificateID))
			return res, nil
		}
		res.State = StateCompletedCertified
		res.Certificate = &existing
		return res, nil
	}
	res.State = StateCompletedCertified
	res.Certificate = &cert
	res.Issued = true

	log := i.log.With(zap.String("user_id", learner.UserID), zap.String("course_id", courseID),
		zap.String("certificate_id", cert.CertificateID))
	if err := i.ledger.IndexCertificate(ctx, cert); err != nil {
		log.Warn("certificate index write failed", zap.Error(err))
	}
	if i.counter != nil {
		if err := i.counter.IncrementCompletions(ctx, courseID); err != nil {
			log.Warn("completion counter update failed", zap.Error(err))
		}
	}
	i.events.Publish(analytics.SubjectCourseCompleted, "course_completed", learner.UserID, map[string]any{
		"course_id":      courseID,
		"certificate_id": cert.CertificateID,
		"total_lessons":  res.Summary.TotalLessons,
	})
	log.Info("certificate issued")
	return res, nil
}

func (i *Issuer) lookup(ctx context.Context, userID, courseID string) (Certificate, bool) {
	held, err := i.ledger.ListCertificates(ctx, userID)
	if err != nil {
		return Certificate{}, false
	}
	for _, h := range held {
		if h.CourseID == courseID {
			return h, true
		}
	}
	return Certificate{}, false
}
