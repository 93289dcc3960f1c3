package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/questor/internal/platform/analytics"
	"github.com/example/questor/internal/platform/api"
	"github.com/example/questor/internal/platform/httpserver"
	"github.com/example/questor/internal/platform/signing"
	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/store"
)

type certificateListResponse struct {
	Items []certify.Certificate `json:"items"`
	Total int                   `json:"total"`
}

type shareResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyResponse struct {
	Valid       bool                `json:"valid"`
	Certificate certify.Certificate `json:"certificate"`
}

// ShareConfig controls share link issuance.
type ShareConfig struct {
	Signer  *signing.Signer
	BaseURL string
	TTL     time.Duration
}

// ListCertificates handles GET /v1/certificates?q=.
func ListCertificates(cs store.CertificateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		held, err := cs.ListCertificates(r.Context(), learner.UserID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		items := certify.Filter(held, r.URL.Query().Get("q"))
		api.WriteJSON(w, http.StatusOK, certificateListResponse{Items: items, Total: len(items)})
	}
}

// GetCertificate handles GET /v1/certificates/{certificate_id}. It reads the
// global index and needs no authentication.
func GetCertificate(cs store.CertificateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "certificate_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "certificate_id is required", rid, nil)
			return
		}
		c, err := cs.GetCertificate(r.Context(), id)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// ShareCertificate handles POST /v1/certificates/{certificate_id}/share.
// Only the holder can mint a link.
func ShareCertificate(cs store.CertificateStore, cfg ShareConfig, events *analytics.Publisher) http.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		learner, ok := learnerFrom(w, r, rid)
		if !ok {
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "certificate_id"))
		held, err := cs.ListCertificates(r.Context(), learner.UserID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		found := false
		for _, h := range held {
			if h.CertificateID == id {
				found = true
				break
			}
		}
		if !found {
			writeServiceError(w, rid, store.ErrCertificateNotFound)
			return
		}

		exp := time.Now().Add(cfg.TTL).UTC()
		link, err := signing.BuildShareURL(cfg.BaseURL, cfg.Signer.Sign(id, learner.UserID, exp))
		if err != nil {
			api.Internal(w, rid)
			return
		}
		events.Publish(analytics.SubjectCertificateShared, "certificate_shared", learner.UserID, map[string]any{
			"certificate_id": id,
		})
		api.WriteJSON(w, http.StatusOK, shareResponse{URL: link, ExpiresAt: time.Unix(exp.Unix(), 0).UTC()})
	}
}

// VerifyShare handles GET /v1/certificates/verify?cert=&exp=&uid=&sig=.
func VerifyShare(cs store.CertificateStore, signer *signing.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		grant, err := signing.ExtractSigned(r.URL.Query())
		if err != nil {
			api.BadRequest(w, "INVALID_SHARE_LINK", "share link is malformed", rid, nil)
			return
		}
		if !signer.Verify(grant.CertificateID, grant.UID, grant.Exp, grant.Sig) {
			api.Forbidden(w, "SHARE_LINK_INVALID", "share link is invalid or expired", rid)
			return
		}
		c, err := cs.GetCertificate(r.Context(), grant.CertificateID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		if c.UserID != grant.UID {
			writeServiceError(w, rid, store.ErrCertificateNotFound)
			return
		}
		api.WriteJSON(w, http.StatusOK, verifyResponse{Valid: true, Certificate: c})
	}
}

type courseStatsResponse struct {
	CourseID         string `json:"course_id"`
	CourseTitle      string `json:"course_title"`
	TotalLessons     int    `json:"total_lessons"`
	CompletionsCount int64  `json:"completions_count"`
}

// GetCourseStats handles GET /v1/courses/{course_id}/stats (admin only).
func GetCourseStats(courses store.CourseStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		courseID, ok := courseIDParam(w, r, rid)
		if !ok {
			return
		}
		c, err := courses.GetCourse(r.Context(), courseID)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		n, err := courses.CompletionsCount(r.Context(), courseID)
		if err != nil && !errors.Is(err, store.ErrCourseNotFound) {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, courseStatsResponse{
			CourseID:         c.ID,
			CourseTitle:      c.Title,
			TotalLessons:     c.TotalLessons(),
			CompletionsCount: n,
		})
	}
}
