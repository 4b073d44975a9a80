package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ──────────────────────────────────────────────
// 1. LOGGING
// ──────────────────────────────────────────────

func TestLogging_LevelFollowsStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tc := range testCases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		r := gin.New()
		r.Use(Logging(logger))
		status := tc.status
		r.GET("/v1/sessions/:id", func(c *gin.Context) { c.Status(status) })

		serve(r, http.MethodGet, "/v1/sessions/abc", nil)

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
		}
		if entry["msg"] != "http_request" {
			t.Errorf("msg = %v", entry["msg"])
		}
		if entry["level"] != tc.level {
			t.Errorf("status %d: level = %v, want %s", tc.status, entry["level"], tc.level)
		}
		if entry["path"] != "/v1/sessions/:id" {
			t.Errorf("path = %v, want route template", entry["path"])
		}
		if got, _ := entry["status"].(float64); int(got) != tc.status {
			t.Errorf("status = %v, want %d", entry["status"], tc.status)
		}
		if _, ok := entry["duration_ms"]; !ok {
			t.Error("expected 'duration_ms' field in log entry")
		}
	}
}

// ──────────────────────────────────────────────
// 2. CORS
// ──────────────────────────────────────────────

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CORSMiddleware("https://dashboard.example"))
	called := false
	r.GET("/v1/reports/daily", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})
	r.OPTIONS("/v1/reports/daily", func(c *gin.Context) { called = true })

	w := serve(r, http.MethodOptions, "/v1/reports/daily", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example" {
		t.Errorf("allow origin = %q", got)
	}

	w = serve(r, http.MethodGet, "/v1/reports/daily", nil)
	if w.Code != http.StatusOK || !called {
		t.Errorf("GET status = %d, called = %v", w.Code, called)
	}
}

// ──────────────────────────────────────────────
// 3. RATE LIMIT
// ──────────────────────────────────────────────

func TestRateLimiter_Returns429WhenLimitExceeded(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute}, discard())
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serve(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if rl.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", rl.ClientCount())
	}
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Hour}, discard())
	defer rl.Stop()

	rl.limiter("10.0.0.1")
	rl.cleanup(time.Now())
	if rl.ClientCount() != 1 {
		t.Fatalf("recent client evicted")
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", rl.ClientCount())
	}
}

// ──────────────────────────────────────────────
// 4. IDEMPOTENCY
// ──────────────────────────────────────────────

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte

	GetError error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: make(map[string][]byte)}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryIdempotencyStore) Reserve(_ context.Context, key string, marker []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = marker
	return true, nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestIdempotency_ReplaysRecordedResponse(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	calls := 0

	r := gin.New()
	r.Use(Idempotency(store, time.Minute, discard()))
	r.POST("/v1/taps", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	r.POST("/v1/boardings", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	key := http.Header{"Idempotency-Key": []string{"k1"}}

	first := serve(r, http.MethodPost, "/v1/taps", key)
	second := serve(r, http.MethodPost, "/v1/taps", key)
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %s, want %d %s", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replayed response must be marked")
	}

	serve(r, http.MethodPost, "/v1/boardings", key)
	if calls != 2 {
		t.Errorf("same key on another route must not replay, calls = %d", calls)
	}

	serve(r, http.MethodPost, "/v1/taps", nil)
	if calls != 3 {
		t.Errorf("request without key must run, calls = %d", calls)
	}
}

func TestIdempotency_ConcurrentResendRejectedWhileInFlight(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	var calls atomic.Int32
	entered := make(chan struct{})
	unblock := make(chan struct{})

	r := gin.New()
	r.Use(Idempotency(store, time.Minute, discard()))
	r.POST("/v1/boardings", func(c *gin.Context) {
		calls.Add(1)
		close(entered)
		<-unblock
		c.JSON(http.StatusCreated, gin.H{"passenger_count": 1})
	})

	key := http.Header{"Idempotency-Key": []string{"board-1"}}

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- serve(r, http.MethodPost, "/v1/boardings", key)
	}()
	<-entered

	resend := serve(r, http.MethodPost, "/v1/boardings", key)
	if resend.Code != http.StatusConflict {
		t.Fatalf("resend status = %d, want 409", resend.Code)
	}
	if !strings.Contains(resend.Body.String(), "REQUEST_IN_PROGRESS") {
		t.Errorf("resend body = %s", resend.Body.String())
	}

	close(unblock)
	first := <-done
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	replayed := serve(r, http.MethodPost, "/v1/boardings", key)
	if replayed.Code != http.StatusCreated || replayed.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %s, want 201 %s", replayed.Code, replayed.Body.String(), first.Body.String())
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestIdempotency_DoesNotRecordServerErrors(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	calls := 0

	r := gin.New()
	r.Use(Idempotency(store, time.Minute, discard()))
	r.POST("/v1/taps", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "TRANSIENT_STORE_ERROR"})
	})

	key := http.Header{"Idempotency-Key": []string{"k2"}}
	serve(r, http.MethodPost, "/v1/taps", key)
	serve(r, http.MethodPost, "/v1/taps", key)
	if calls != 2 {
		t.Errorf("503 must not be replayed, calls = %d", calls)
	}
}

func TestIdempotency_StoreDownPassesThrough(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	store.GetError = errors.New("connection refused")

	r := gin.New()
	r.Use(Idempotency(store, time.Minute, discard()))
	r.POST("/v1/taps", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodPost, "/v1/taps", http.Header{"Idempotency-Key": []string{"k3"}})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
