package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fluxagent/config"
	"github.com/BaSui01/fluxagent/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler(), mark("a"), mark("b"), mark("c")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Regexp(t, `^req-[0-9a-f-]{36}$`, w.Header().Get("X-Request-ID"))
		assert.Equal(t, w.Header().Get("X-Request-ID"), seen)
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "client-42")
		handler.ServeHTTP(w, r)
		assert.Equal(t, "client-42", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "client-42", seen)
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrInternalError))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/health", "/health"},
		{"/api/v1/capabilities", "/api/v1/capabilities"},
		{"/api/v1/capabilities/generateImage", "/api/v1/capabilities/{name}"},
		{"/api/v1/capabilities/help", "/api/v1/capabilities/{name}"},
		{"/api/v1/generations", "/api/v1/generations"},
		{"/api/v1/generations/4f9c2a1e-7b3d-4e2a-9c1f-0a1b2c3d4e5f", "/api/v1/generations/{id}"},
		{"/other/12345/child", "/other/{id}/child"},
		{"/other/name", "/other/name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.in))
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	var subject string
	handler := APIKeyAuth([]string{"", "key-a", "key-b"}, []string{"/health"}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, _ = types.Subject(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name    string
		path    string
		key     string
		want    int
		subject string
	}{
		{"skip path", "/health", "", http.StatusOK, ""},
		{"missing key", "/api/v1/capabilities", "", http.StatusUnauthorized, ""},
		{"wrong key", "/api/v1/capabilities", "nope", http.StatusUnauthorized, ""},
		{"first key", "/api/v1/capabilities", "key-a", http.StatusOK, "api-key-0"},
		{"second key", "/api/v1/capabilities", "key-b", http.StatusOK, "api-key-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "fluxagent"}
	var subject string
	handler := JWTAuth(cfg, []string{"/health"}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, _ = types.Subject(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	valid := signHS256(t, "s3cret", jwt.MapClaims{
		"sub": "user-7",
		"iss": "fluxagent",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signHS256(t, "s3cret", jwt.MapClaims{
		"sub": "user-7",
		"iss": "fluxagent",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongIssuer := signHS256(t, "s3cret", jwt.MapClaims{"sub": "user-7", "iss": "other"})
	wrongSecret := signHS256(t, "other", jwt.MapClaims{"sub": "user-7", "iss": "fluxagent"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"skip path", "/health", "", http.StatusOK},
		{"missing header", "/api/v1/generations", "", http.StatusUnauthorized},
		{"not bearer", "/api/v1/generations", "Basic abc", http.StatusUnauthorized},
		{"valid", "/api/v1/generations", "Bearer " + valid, http.StatusOK},
		{"expired", "/api/v1/generations", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "/api/v1/generations", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"wrong secret", "/api/v1/generations", "Bearer " + wrongSecret, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
			if tt.name == "valid" {
				assert.Equal(t, "user-7", subject)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他客户端不受影响
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger_RecordsStatus(t *testing.T) {
	handler := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
