package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/questor/internal/platform/api"
	"github.com/example/questor/internal/platform/httpserver"
	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/events"
	"github.com/example/questor/services/progress/internal/progress"
	"github.com/example/questor/services/progress/internal/recorder"
	"github.com/example/questor/services/progress/internal/store"
)

type lessonRequest struct {
	SectionTitle string `json:"section_title" validate:"required"`
	LessonName   string `json:"lesson_name" validate:"required"`
}

type tickRequest struct {
	lessonRequest
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
	Duration    float64 `json:"duration" validate:"gt=0"`
}

type summariesRequest struct {
	CourseIDs []string `json:"course_ids" validate:"required,min=1,max=100,dive,required"`
}

type lessonStatus struct {
	course.LessonRef
	Progress progress.LessonProgress `json:"progress"`
}

type playerResponse struct {
	CourseID    string               `json:"course_id"`
	CourseTitle string               `json:"course_title"`
	Summary     progress.Summary     `json:"summary"`
	Lessons     []lessonStatus       `json:"lessons"`
	Resume      *course.LessonRef    `json:"resume,omitempty"`
	Certificate *certify.Certificate `json:"certificate,omitempty"`
}

type acceptedResponse struct {
	EventID string `json:"event_id"`
}

func courseIDParam(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "course_id"))
	if id == "" {
		api.BadRequest(w, "MISSING_ID", "course_id is required", rid, nil)
		return "", false
	}
	return id, true
}

// RecordTick handles POST /v1/courses/{course_id}/progress/tick.
// With async writes enabled the tick is queued and acknowledged with 202.
func RecordTick(courses store.CourseStore, rec *recorder.Recorder, pub *EventPublisher, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		var req tickRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		ref, ok := resolveLesson(w, r, rid, courses, courseID, req.lessonRequest)
		if !ok {
			return
		}

		if pub.Enabled() {
			eventID, err := pub.PublishTick(events.Playback{
				UserID:      learner.UserID,
				UserName:    learner.Name,
				CourseID:    courseID,
				LessonKey:   ref.Key,
				CurrentTime: req.CurrentTime,
				Duration:    req.Duration,
			})
			if err == nil {
				w.Header().Set("X-Event-ID", eventID)
				api.WriteJSON(w, http.StatusAccepted, acceptedResponse{EventID: eventID})
				return
			}
			log.Warn("tick publish failed; recording synchronously", zap.String("request_id", rid), zap.Error(err))
		}

		out, err := rec.RecordTick(r.Context(), learner, courseID, ref.Key, req.CurrentTime, req.Duration)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// RecordEnded handles POST /v1/courses/{course_id}/progress/ended.
func RecordEnded(courses store.CourseStore, rec *recorder.Recorder) http.HandlerFunc {
	return recordCompletion(courses, rec.RecordEnded)
}

// RecordManualComplete handles POST /v1/courses/{course_id}/progress/complete.
func RecordManualComplete(courses store.CourseStore, rec *recorder.Recorder) http.HandlerFunc {
	return recordCompletion(courses, rec.RecordManualComplete)
}

type completionFunc func(ctx context.Context, learner certify.Learner, courseID, lessonKey string) (recorder.Outcome, error)

func recordCompletion(courses store.CourseStore, fn completionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		var req lessonRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		ref, ok := resolveLesson(w, r, rid, courses, courseID, req)
		if !ok {
			return
		}
		out, err := fn(r.Context(), learner, courseID, ref.Key)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

func resolveLesson(w http.ResponseWriter, r *http.Request, rid string, courses store.CourseStore, courseID string, req lessonRequest) (course.LessonRef, bool) {
	c, err := courses.GetCourse(r.Context(), courseID)
	if err != nil {
		writeServiceError(w, rid, err)
		return course.LessonRef{}, false
	}
	ref, err := c.Find(req.SectionTitle, req.LessonName)
	if err != nil {
		writeServiceError(w, rid, err)
		return course.LessonRef{}, false
	}
	return ref, true
}

// GetCourseProgress handles GET /v1/courses/{course_id}/progress.
func GetCourseProgress(courses store.CourseStore, ps store.ProgressStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		c, err := courses.GetCourse(r.Context(), courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		m, err := ps.GetCourseProgress(r.Context(), learner.UserID, courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, progress.CourseSummary{
			CourseID:    c.ID,
			CourseTitle: c.Title,
			Summary:     progress.Aggregate(c, m),
		})
	}
}

// GetPlayer handles GET /v1/courses/{course_id}/player: per-lesson state,
// the course summary and where playback should resume.
func GetPlayer(courses store.CourseStore, ps store.ProgressStore, cs store.CertificateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		c, err := courses.GetCourse(r.Context(), courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		m, err := ps.GetCourseProgress(r.Context(), learner.UserID, courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		held, err := cs.ListCertificates(r.Context(), learner.UserID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}

		resp := playerResponse{
			CourseID:    c.ID,
			CourseTitle: c.Title,
			Summary:     progress.Aggregate(c, m),
			Lessons:     []lessonStatus{},
		}
		for _, ref := range c.Lessons() {
			resp.Lessons = append(resp.Lessons, lessonStatus{LessonRef: ref, Progress: m[ref.Key]})
		}
		if ref, ok := course.ResumePoint(c, resp.Summary.LastWatchedLesson); ok {
			resp.Resume = &ref
		}
		for _, h := range held {
			if h.CourseID == courseID {
				resp.Certificate = &h
				break
			}
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// GetNextLesson handles GET /v1/courses/{course_id}/next?section=&lesson=.
func GetNextLesson(courses store.CourseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		si, serr := strconv.Atoi(r.URL.Query().Get("section"))
		li, lerr := strconv.Atoi(r.URL.Query().Get("lesson"))
		if serr != nil || lerr != nil {
			api.BadRequest(w, "INVALID_POSITION", "section and lesson must be integers", rid, nil)
			return
		}
		c, err := courses.GetCourse(r.Context(), courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		step, err := course.NextLesson(c, si, li)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, step)
	}
}

// GetSummaries handles POST /v1/progress/summaries for catalog and wishlist
// cards. Unknown courses are reported with a zero summary.
func GetSummaries(courses store.CourseStore, ps store.ProgressStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		var req summariesRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		out := make([]progress.CourseSummary, 0, len(req.CourseIDs))
		for _, id := range req.CourseIDs {
			id = strings.TrimSpace(id)
			c, err := courses.GetCourse(r.Context(), id)
			if errors.Is(err, store.ErrCourseNotFound) {
				out = append(out, progress.CourseSummary{CourseID: id})
				continue
			}
			if err != nil {
				writeServiceError(w, rid, err)
				return
			}
			m, err := ps.GetCourseProgress(r.Context(), learner.UserID, id)
			if err != nil {
				writeServiceError(w, rid, err)
				return
			}
			out = append(out, progress.CourseSummary{CourseID: c.ID, CourseTitle: c.Title, Summary: progress.Aggregate(c, m)})
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}

// GetDashboard handles GET /v1/progress?timeframe=week|month|year|all.
func GetDashboard(courses store.CourseStore, ps store.ProgressStore, cs store.CertificateStore, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		tf, err := progress.ParseTimeframe(r.URL.Query().Get("timeframe"))
		if err != nil {
			api.BadRequest(w, "INVALID_TIMEFRAME", err.Error(), rid, map[string]any{"timeframe": "one of week, month, year, all"})
			return
		}

		ids, err := ps.ListCourseIDs(r.Context(), learner.UserID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		summaries := make([]progress.CourseSummary, 0, len(ids))
		for _, id := range ids {
			c, err := courses.GetCourse(r.Context(), id)
			if errors.Is(err, store.ErrCourseNotFound) {
				continue
			}
			if err != nil {
				writeServiceError(w, rid, err)
				return
			}
			m, err := ps.GetCourseProgress(r.Context(), learner.UserID, id)
			if err != nil {
				writeServiceError(w, rid, err)
				return
			}
			summaries = append(summaries, progress.CourseSummary{CourseID: c.ID, CourseTitle: c.Title, Summary: progress.Aggregate(c, m)})
		}
		held, err := cs.ListCertificates(r.Context(), learner.UserID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, progress.BuildDashboard(summaries, len(held), tf, now().UTC()))
	}
}
