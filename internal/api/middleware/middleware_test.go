package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mw "github.com/kiranshivaraju/geoharvest/internal/api/middleware"
	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
	lastKey string
	lastTTL time.Duration
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                          { return nil }
func (m *mockCache) Ping(_ context.Context) error                                      { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.lastKey = key
	m.lastTTL = ttl
	m.counter++
	return m.counter, m.err
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func hashKey(t *testing.T, rawKey string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, "gh_live_1234567890")}, false)
	w := serve(auth.Authenticate(okHandler()), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, "gh_live_1234567890")}, false)
	w := serve(auth.Authenticate(okHandler()), "Basic abc123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_KeyTooShort(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, "gh_live_1234567890")}, false)
	w := serve(auth.Authenticate(okHandler()), "Bearer short")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key format", errBody(t, w)["message"])
}

func TestAuth_WrongKey(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, "different_key_entirely")}, false)
	w := serve(auth.Authenticate(okHandler()), "Bearer gh_live_1234567890")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key", errBody(t, w)["message"])
}

func TestAuth_ValidKeySetsPrefix(t *testing.T) {
	rawKey := "gh_live_1234567890abcdef"
	auth := mw.NewAuth([]string{hashKey(t, "other_key_0000000"), hashKey(t, rawKey)}, false)

	var gotPrefix string
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefix, gotOK = mw.KeyPrefix(r)
		w.WriteHeader(http.StatusOK)
	})

	w := serve(auth.Authenticate(inner), "Bearer "+rawKey)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, "gh_live_", gotPrefix)
}

func TestAuth_OpenWhenAllowedWithoutKeys(t *testing.T) {
	auth := mw.NewAuth(nil, true)

	var gotPrefix string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefix, _ = mw.KeyPrefix(r)
	})
	w := serve(auth.Authenticate(inner), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anon:192.0.2.1", gotPrefix)
}

func TestAuth_KeysStillCheckedWhenAllowed(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, "gh_live_1234567890")}, true)
	w := serve(auth.Authenticate(okHandler()), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func withPrefix(req *http.Request, prefix string) *http.Request {
	return req.WithContext(mw.WithKeyPrefix(req.Context(), prefix))
}

var rateClock = time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)

func newRateLimit(mc *mockCache, perMin int) *mw.RateLimit {
	rl := mw.NewRateLimit(mc, perMin)
	mw.SetRateLimitClock(rl, func() time.Time { return rateClock })
	return rl
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCache{counter: 0}
	handler := newRateLimit(mc, 60).Limit(okHandler())

	req := withPrefix(httptest.NewRequest("GET", "/test", nil), "gh_test1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	window := rateClock.Truncate(time.Minute)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprintf("ratelimit:gh_test1:%d", window.Unix()), mc.lastKey)
	assert.Equal(t, 46*time.Second, mc.lastTTL, "rest of the window plus one second")
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, fmt.Sprint(window.Add(time.Minute).Unix()), w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_NextMinuteUsesFreshKey(t *testing.T) {
	mc := &mockCache{}
	rl := newRateLimit(mc, 60)
	handler := rl.Limit(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), withPrefix(httptest.NewRequest("GET", "/test", nil), "gh_test1"))
	first := mc.lastKey

	mw.SetRateLimitClock(rl, func() time.Time { return rateClock.Add(time.Minute) })
	handler.ServeHTTP(httptest.NewRecorder(), withPrefix(httptest.NewRequest("GET", "/test", nil), "gh_test1"))
	assert.NotEqual(t, first, mc.lastKey)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCache{counter: 60} // next IncrWithExpiry will return 61
	handler := newRateLimit(mc, 60).Limit(okHandler())

	before := testutil.ToFloat64(telemetry.RateLimitRejects)

	req := withPrefix(httptest.NewRequest("POST", "/api/v1/tools/check_job_status", nil), "gh_over1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	body := errBody(t, w)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(60), details["limit_per_minute"])
	assert.Equal(t, float64(45), details["retry_after_seconds"])
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.RateLimitRejects))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mc := &mockCache{err: errors.New("redis down")}
	handler := mw.NewRateLimit(mc, 1).Limit(okHandler())

	req := withPrefix(httptest.NewRequest("GET", "/test", nil), "gh_test1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NoKeyPrefix_PassThrough(t *testing.T) {
	mc := &mockCache{}
	handler := mw.NewRateLimit(mc, 60).Limit(okHandler())

	w := serve(handler, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mc.lastKey)
}

// ========================================
// Request ID Middleware Tests
// ========================================

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := mw.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = mw.RequestIDFrom(r.Context())
	}))

	w := serve(handler, "")

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(mw.RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	var seen string
	handler := mw.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = mw.RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(mw.RequestIDHeader, "agent-call-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "agent-call-42", seen)
	assert.Equal(t, "agent-call-42", w.Header().Get(mw.RequestIDHeader))
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	w := serve(mw.Recovery(panicking), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_ReturnsRequestID(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("bad bundle entry")
	})

	req := httptest.NewRequest("POST", "/api/v1/tools/list_bundle_files", nil)
	req.Header.Set(mw.RequestIDHeader, "call-7")
	w := httptest.NewRecorder()
	mw.RequestID(mw.Recovery(panicking)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	details := errBody(t, w)["details"].(map[string]any)
	assert.Equal(t, "call-7", details["request_id"])
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	aborting := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(mw.Recovery(aborting), "")
	})
}

func TestRecovery_NoPanic(t *testing.T) {
	w := serve(mw.Recovery(okHandler()), "")

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := serve(handler, "")

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestLogger_PassesBodyThrough(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("hello"))
	}))

	w := serve(handler, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
}
