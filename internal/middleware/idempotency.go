package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/redis"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyReplayed = "Idempotent-Replayed"

	// DefaultIdempotencyTTL bounds how long a terminal may resend a request.
	DefaultIdempotencyTTL = 24 * time.Hour

	// inFlightTTL bounds a reservation left behind by a crashed request.
	inFlightTTL = time.Minute
)

var inFlightMarker = []byte("in-flight")

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body"`
	ContentType string          `json:"content_type"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the recorded response of a POST carrying an
// Idempotency-Key header. Keys are scoped to the route, so the same key on
// /v1/taps and /v1/boardings never collides.
//
// The key is reserved before the handler runs; a resend arriving while the
// first request is still in flight gets 409 REQUEST_IN_PROGRESS.
// Only outcomes the client should not retry are recorded: 2xx and 4xx.
// A 503 after exhausted store retries releases the key for the client to resend.
// If the store is unavailable the request proceeds without replay protection.
func Idempotency(store redis.IdempotencyStoreInterface, ttl time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}

	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := c.FullPath() + ":" + key

		data, err := store.Get(ctx, scoped)
		if err != nil {
			logStoreError(logger, c, "idempotency lookup failed", err)
			c.Next()
			return
		}

		if data == nil {
			reserved, err := store.Reserve(ctx, scoped, inFlightMarker, inFlightTTL)
			if err != nil {
				logStoreError(logger, c, "idempotency reserve failed", err)
				c.Next()
				return
			}
			if !reserved {
				// Lost the race; whatever holds the key now is replayed below.
				if data, err = store.Get(ctx, scoped); err != nil || data == nil {
					data = inFlightMarker
				}
			}
		}

		if data != nil {
			replay(c, data)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// The client may have hung up; the outcome is still recorded.
		ctx = context.WithoutCancel(ctx)

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusInternalServerError {
			if err := store.Release(ctx, scoped); err != nil {
				logStoreError(logger, c, "idempotency release failed", err)
			}
			return
		}

		payload, err := json.Marshal(cachedResponse{
			StatusCode:  status,
			Body:        w.body.Bytes(),
			ContentType: c.Writer.Header().Get("Content-Type"),
		})
		if err == nil {
			err = store.Set(ctx, scoped, payload, ttl)
		}
		if err != nil {
			logStoreError(logger, c, "idempotency store failed", err)
		}
	}
}

func replay(c *gin.Context, data []byte) {
	var cached cachedResponse
	if bytes.Equal(data, inFlightMarker) || json.Unmarshal(data, &cached) != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "REQUEST_IN_PROGRESS",
			"message": "a request with this idempotency key is still being processed",
		})
		return
	}

	c.Header(idempotencyReplayed, "true")
	c.Data(cached.StatusCode, cached.ContentType, cached.Body)
	c.Abort()
}

func logStoreError(logger *slog.Logger, c *gin.Context, msg string, err error) {
	logger.Warn(msg,
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()),
	)
}
