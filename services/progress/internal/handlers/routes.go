package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/questor/internal/platform/analytics"
	"github.com/example/questor/internal/platform/auth"
	"github.com/example/questor/services/progress/internal/recorder"
	"github.com/example/questor/services/progress/internal/store"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Courses      store.CourseStore
	Progress     store.ProgressStore
	Certificates store.CertificateStore
	Recorder     *recorder.Recorder
	Publisher    *EventPublisher
	Events       *analytics.Publisher
	Share        ShareConfig
	Verifier     auth.JWTVerifier
	Log          *zap.Logger
	Now          func() time.Time
}

// Mount registers the /v1 routes on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/certificates/verify", VerifyShare(d.Certificates, d.Share.Signer))
		r.Get("/certificates/{certificate_id}", GetCertificate(d.Certificates))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(d.Verifier))

			r.Get("/progress", GetDashboard(d.Courses, d.Progress, d.Certificates, d.Now))
			r.Post("/progress/summaries", GetSummaries(d.Courses, d.Progress))

			r.Get("/courses/{course_id}/progress", GetCourseProgress(d.Courses, d.Progress))
			r.Get("/courses/{course_id}/player", GetPlayer(d.Courses, d.Progress, d.Certificates))
			r.Get("/courses/{course_id}/next", GetNextLesson(d.Courses))
			r.Post("/courses/{course_id}/progress/tick", RecordTick(d.Courses, d.Recorder, d.Publisher, d.Log))
			r.Post("/courses/{course_id}/progress/ended", RecordEnded(d.Courses, d.Recorder))
			r.Post("/courses/{course_id}/progress/complete", RecordManualComplete(d.Courses, d.Recorder))

			r.Get("/certificates", ListCertificates(d.Certificates))
			r.Post("/certificates/{certificate_id}/share", ShareCertificate(d.Certificates, d.Share, d.Events))

			r.With(auth.RequireAdmin).Get("/courses/{course_id}/stats", GetCourseStats(d.Courses))
		})
	})
}
