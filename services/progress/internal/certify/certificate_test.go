package certify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicID(t *testing.T) {
	now := time.Now()
	a := DeterministicID("learner-1", "golang-basics", now)
	b := DeterministicID("learner-1", "golang-basics", now.Add(time.Hour))

	assert.Equal(t, a, b, "id must not depend on time")
	assert.True(t, strings.HasPrefix(a, "CERT-golang-"), a)
	assert.NotEqual(t, a, DeterministicID("learner-2", "golang-basics", now))
	assert.NotEqual(t, a, DeterministicID("learner-1", "golang-advanced", now))
	// The separator keeps ("ab","c") and ("a","bc") apart.
	assert.NotEqual(t, DeterministicID("ab", "c", now), DeterministicID("a", "bc", now))
}

func TestLegacyID(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	assert.Equal(t, "CERT-go-loyw3v28", LegacyID("u", "go", at))
}

func TestIDScheme(t *testing.T) {
	for _, name := range []string{"", "deterministic", " Deterministic "} {
		fn, err := IDScheme(name)
		require.NoError(t, err)
		assert.Equal(t, DeterministicID("u", "c", time.Time{}), fn("u", "c", time.Now()))
	}
	fn, err := IDScheme("legacy")
	require.NoError(t, err)
	at := time.UnixMilli(42)
	assert.Equal(t, LegacyID("u", "c", at), fn("u", "c", at))

	_, err = IDScheme("random")
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	certs := []Certificate{
		{CertificateID: "a", CourseName: "Intro to Go", IssueDate: base},
		{CertificateID: "b", CourseName: "Advanced Rust", IssueDate: base.Add(time.Hour)},
		{CertificateID: "c", CourseName: "GO concurrency", IssueDate: base.Add(2 * time.Hour)},
	}

	got := Filter(certs, "go")
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].CertificateID, "newest first")
	assert.Equal(t, "a", got[1].CertificateID)

	assert.Len(t, Filter(certs, ""), 3)
	assert.Empty(t, Filter(certs, "python"))
}

func TestLearnerDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Learner{UserID: "u", Name: " Ada "}.displayName())
	assert.Equal(t, "u", Learner{UserID: "u"}.displayName())
}
