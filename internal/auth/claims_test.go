package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testConfig = Config{Secret: "test-secret", Issuer: "workload.identity"}

func signToken(t *testing.T, secret, issuer, subject, role string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  issuer,
		"sub":  subject,
		"role": role,
		"exp":  expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, testConfig.Secret, testConfig.Issuer, "mgr-1", "manager", time.Now().Add(time.Hour))

	claims, err := Parse(token, testConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "mgr-1" {
		t.Fatalf("expected subject mgr-1 got %s", claims.Subject)
	}
	if claims.Role != "manager" {
		t.Fatalf("expected role manager got %s", claims.Role)
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	token := signToken(t, "wrong-secret", testConfig.Issuer, "mgr-1", "manager", time.Now().Add(time.Hour))

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error got %v", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token := signToken(t, testConfig.Secret, "someone-else", "mgr-1", "manager", time.Now().Add(time.Hour))

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token := signToken(t, testConfig.Secret, testConfig.Issuer, "mgr-1", "manager", time.Now().Add(-time.Minute))

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error got %v", err)
	}
}

func TestParseRequiresSubjectAndRole(t *testing.T) {
	token := signToken(t, testConfig.Secret, testConfig.Issuer, "", "manager", time.Now().Add(time.Hour))
	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error got %v", err)
	}

	token = signToken(t, testConfig.Secret, testConfig.Issuer, "mgr-1", "", time.Now().Add(time.Hour))
	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error got %v", err)
	}
}

func TestParseMissingToken(t *testing.T) {
	if _, err := Parse("", testConfig); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error got %v", err)
	}
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	middleware := NewMiddleware(testConfig)

	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	token := signToken(t, testConfig.Secret, testConfig.Issuer, "emp-1", "employee", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	middleware.Wrap(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if seen == nil || seen.Subject != "emp-1" {
		t.Fatalf("expected claims in context, got %+v", seen)
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	middleware := NewMiddleware(testConfig)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a token")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	rr := httptest.NewRecorder()
	middleware.Wrap(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestMiddlewareSkipsHealthAndMetrics(t *testing.T) {
	middleware := NewMiddleware(testConfig)

	for _, path := range []string{"/healthz", "/metrics"} {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		middleware.Wrap(next).ServeHTTP(rr, req)

		if !called || rr.Code != http.StatusOK {
			t.Fatalf("%s: expected unauthenticated pass-through, got %d", path, rr.Code)
		}
	}
}
