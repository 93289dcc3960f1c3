// Package signing issues and verifies HMAC-signed, expiring share links for
// certificates.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrMissingParams = errors.New("missing signed params")

type Signer struct {
	Secret []byte
	now    func() time.Time
}

// Signed is a share grant for one certificate owned by UID.
type Signed struct {
	CertificateID string
	Exp           int64
	UID           string
	Sig           string
}

func New(secret string) *Signer {
	return &Signer{Secret: []byte(secret), now: time.Now}
}

func (s *Signer) Sign(certificateID, userID string, exp time.Time) Signed {
	sig := s.signValue(certificateID, userID, exp.Unix())
	return Signed{CertificateID: certificateID, Exp: exp.Unix(), UID: userID, Sig: sig}
}

func (s *Signer) Verify(certificateID, userID string, exp int64, sig string) bool {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.signValue(certificateID, userID, exp)))
}

func (s *Signer) signValue(certificateID, userID string, exp int64) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(certificateID))
	mac.Write([]byte("|"))
	mac.Write([]byte(userID))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// BuildShareURL appends the grant to base as cert/exp/uid/sig query params.
func BuildShareURL(base string, signed Signed) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("cert", signed.CertificateID)
	q.Set("exp", strconv.FormatInt(signed.Exp, 10))
	q.Set("uid", signed.UID)
	q.Set("sig", signed.Sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func ExtractSigned(query url.Values) (Signed, error) {
	cert := strings.TrimSpace(query.Get("cert"))
	uid := strings.TrimSpace(query.Get("uid"))
	expStr := strings.TrimSpace(query.Get("exp"))
	sig := strings.TrimSpace(query.Get("sig"))
	if cert == "" || uid == "" || expStr == "" || sig == "" {
		return Signed{}, ErrMissingParams
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return Signed{}, err
	}
	return Signed{CertificateID: cert, Exp: exp, UID: uid, Sig: sig}, nil
}
