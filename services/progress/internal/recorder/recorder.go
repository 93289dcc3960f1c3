// Package recorder turns playback signals into lesson progress merges and
// re-evaluates course completion after every successful write.
package recorder

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/example/questor/internal/platform/analytics"
	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/progress"
	"github.com/example/questor/services/progress/internal/store"
)

var ErrInvalidPlayback = errors.New("invalid playback position")

// Detector is notified after each persisted write.
type Detector interface {
	Evaluate(ctx context.Context, learner certify.Learner, courseID string) (certify.Result, error)
}

// Outcome is what the caller sees after a signal. Persisted is false when
// the store write failed; Progress then holds the optimistic local view.
type Outcome struct {
	Progress      progress.LessonProgress `json:"progress"`
	Persisted     bool                    `json:"persisted"`
	Certification *certify.Result         `json:"certification,omitempty"`
}

type Recorder struct {
	store    store.ProgressStore
	detector Detector
	events   *analytics.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func New(s store.ProgressStore, detector Detector, events *analytics.Publisher, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: s, detector: detector, events: events, log: log, now: time.Now}
}

// RecordTick stores a periodic position report.
func (r *Recorder) RecordTick(ctx context.Context, learner certify.Learner, courseID, lessonKey string, currentSeconds, durationSeconds float64) (Outcome, error) {
	if !(durationSeconds > 0) || math.IsInf(durationSeconds, 0) ||
		!(currentSeconds >= 0) || math.IsInf(currentSeconds, 0) {
		return Outcome{}, ErrInvalidPlayback
	}
	return r.apply(ctx, learner, courseID, lessonKey, progress.TickPatch(currentSeconds, durationSeconds, r.now().UTC()))
}

// RecordEnded marks a lesson watched to the end.
func (r *Recorder) RecordEnded(ctx context.Context, learner certify.Learner, courseID, lessonKey string) (Outcome, error) {
	return r.apply(ctx, learner, courseID, lessonKey, progress.CompletePatch(r.now().UTC()))
}

// RecordManualComplete is the explicit "mark complete" action.
func (r *Recorder) RecordManualComplete(ctx context.Context, learner certify.Learner, courseID, lessonKey string) (Outcome, error) {
	return r.apply(ctx, learner, courseID, lessonKey, progress.CompletePatch(r.now().UTC()))
}

func (r *Recorder) apply(ctx context.Context, learner certify.Learner, courseID, lessonKey string, patch progress.Patch) (Outcome, error) {
	log := r.log.With(
		zap.String("user_id", learner.UserID),
		zap.String("course_id", courseID),
		zap.String("lesson_key", lessonKey),
	)

	merged, err := r.store.MergeLessonProgress(ctx, learner.UserID, courseID, lessonKey, patch)
	if err != nil {
		log.Warn("progress write failed; not retried", zap.Error(err))
		return Outcome{Progress: r.optimistic(ctx, learner.UserID, courseID, lessonKey, patch)}, nil
	}
	out := Outcome{Progress: merged.LessonProgress, Persisted: true}

	if merged.NewlyCompleted {
		r.events.Publish(analytics.SubjectLessonCompleted, "lesson_completed", learner.UserID, map[string]any{
			"course_id":  courseID,
			"lesson_key": lessonKey,
		})
	}

	if r.detector != nil {
		res, err := r.detector.Evaluate(ctx, learner, courseID)
		if err != nil {
			log.Warn("completion check failed", zap.Error(err))
			return out, nil
		}
		out.Certification = &res
	}
	return out, nil
}

// optimistic merges patch into the last stored record so a failed write
// never shows less progress than the learner already has.
func (r *Recorder) optimistic(ctx context.Context, userID, courseID, lessonKey string, patch progress.Patch) progress.LessonProgress {
	m, err := r.store.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		return progress.LessonProgress{}.Apply(patch)
	}
	return m[lessonKey].Apply(patch)
}
