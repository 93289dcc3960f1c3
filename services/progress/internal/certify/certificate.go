// Package certify detects course completion and issues at most one
// certificate per learner and course.
package certify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Certificate struct {
	CertificateID string    `json:"certificate_id"`
	CourseID      string    `json:"course_id"`
	CourseName    string    `json:"course_name"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	IssueDate     time.Time `json:"issue_date"`
}

// Learner is the certificate holder as known from the bearer token.
type Learner struct {
	UserID string
	Name   string
}

func (l Learner) displayName() string {
	if n := strings.TrimSpace(l.Name); n != "" {
		return n
	}
	return l.UserID
}

// IDFunc produces a certificate id for a learner and course.
type IDFunc func(userID, courseID string, now time.Time) string

const (
	SchemeDeterministic = "deterministic"
	SchemeLegacy        = "legacy"
)

var certNamespace = uuid.MustParse("6f1c3e2a-4b7d-5c8e-9a0f-1d2e3f4a5b6c")

// DeterministicID derives the id from (userID, courseID) only, so two
// concurrent issuers for the same pair produce the same row key.
func DeterministicID(userID, courseID string, _ time.Time) string {
	u := uuid.NewSHA1(certNamespace, []byte(userID+"\x00"+courseID))
	return "CERT-" + prefix(courseID) + "-" + u.String()
}

// LegacyID reproduces the time-based format CERT-<course prefix>-<base36 ms>.
func LegacyID(_ string, courseID string, now time.Time) string {
	return "CERT-" + prefix(courseID) + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// IDScheme resolves a configured scheme name.
func IDScheme(name string) (IDFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemeDeterministic:
		return DeterministicID, nil
	case SchemeLegacy:
		return LegacyID, nil
	default:
		return nil, fmt.Errorf("unknown certificate id scheme %q", name)
	}
}

func prefix(courseID string) string {
	if len(courseID) > 6 {
		return courseID[:6]
	}
	return courseID
}

// Filter keeps certificates whose course name contains q, case-insensitively,
// and orders them newest first.
func Filter(certs []Certificate, q string) []Certificate {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]Certificate, 0, len(certs))
	for _, c := range certs {
		if q == "" || strings.Contains(strings.ToLower(c.CourseName), q) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.After(out[j].IssueDate)
		}
		return out[i].CertificateID < out[j].CertificateID
	})
	return out
}
