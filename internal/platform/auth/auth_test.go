package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func makeToken(subject, role, name, email string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role:  role,
		Name:  name,
		Email: email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

// ─── JWTVerifier ────────────────────────────────────────────────────────────

func TestJWTVerifier_ValidToken(t *testing.T) {
	tok := makeToken("learner-1", "user", "Ada Lovelace", "ada@example.com", time.Now().Add(time.Hour))
	claims, err := newVerifier().Parse(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "learner-1" {
		t.Fatalf("expected subject 'learner-1', got %q", claims.Subject)
	}
	if claims.Name != "Ada Lovelace" {
		t.Fatalf("expected name claim, got %q", claims.Name)
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	tok := makeToken("learner-1", "user", "", "", time.Now().Add(-time.Hour))
	if _, err := newVerifier().Parse(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	tok := makeToken("learner-1", "user", "", "", time.Now().Add(time.Hour))
	if _, err := (JWTVerifier{Secret: []byte("wrong-secret")}).Parse(tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWTVerifier_TamperedPayload(t *testing.T) {
	tok := makeToken("learner-1", "admin", "", "", time.Now().Add(time.Hour))
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatal("expected 3 JWT parts")
	}
	if _, err := newVerifier().Parse(parts[0] + ".dGFtcGVyZWQ." + parts[2]); err == nil {
		t.Fatal("expected error for tampered token")
	}
}

// ─── Identity ───────────────────────────────────────────────────────────────

func TestIdentityName_FallsBackToEmail(t *testing.T) {
	id := Identity{UserID: "u", Email: "ada@example.com"}
	if id.Name() != "ada@example.com" {
		t.Fatalf("expected email fallback, got %q", id.Name())
	}
	id.DisplayName = "  Ada  "
	if id.Name() != "Ada" {
		t.Fatalf("expected trimmed display name, got %q", id.Name())
	}
}

func TestIdentityFromContext_EmptyUserID(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{DisplayName: "nobody"})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("identity without user id must not be accepted")
	}
}

// ─── RequireUser ────────────────────────────────────────────────────────────

func callRequireUser(req *http.Request) (*httptest.ResponseRecorder, Identity) {
	var captured Identity
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr, captured
}

func TestRequireUser_InjectsIdentity(t *testing.T) {
	tok := makeToken("learner-42", "user", "Grace", "grace@example.com", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rr, id := callRequireUser(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if id.UserID != "learner-42" || id.Name() != "Grace" || id.Role != "user" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestRequireUser_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"non bearer scheme", "Basic dXNlcjpwYXNz"},
		{"invalid token", "Bearer invalid.token.here"},
		{"expired token", "Bearer " + makeToken("u", "user", "", "", time.Now().Add(-time.Hour))},
		{"empty subject", "Bearer " + makeToken("", "user", "", "", time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr, _ := callRequireUser(req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

// ─── RequireAdmin ───────────────────────────────────────────────────────────

func callRequireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"admin", WithIdentity(context.Background(), Identity{UserID: "a", Role: "admin"}), http.StatusOK},
		{"admin upper case", WithIdentity(context.Background(), Identity{UserID: "a", Role: "ADMIN"}), http.StatusOK},
		{"user", WithIdentity(context.Background(), Identity{UserID: "a", Role: "user"}), http.StatusForbidden},
		{"no identity", context.Background(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := callRequireAdmin(tt.ctx); rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}
