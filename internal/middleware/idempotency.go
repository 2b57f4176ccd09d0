package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	inFlightTTL       = 30 * time.Second
	inFlightMarker    = "processing"
)

// IdempotencyStore is the subset of *redis.Client the middleware uses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ IdempotencyStore = (*redis.Client)(nil)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
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

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on mutating requests. Keys are scoped to method and route.
// A second request arriving while the first is still running gets 409.
// Redis failures degrade to normal processing.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := "idempotency:" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		reserved, err := store.SetNX(ctx, cacheKey, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			log.Printf("[IDEMPOTENCY] redis unavailable, processing without key: %v", err)
			c.Next()
			return
		}

		if !reserved {
			replay(c, store, cacheKey)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are not cached so the client can retry.
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			store.Del(context.WithoutCancel(ctx), cacheKey)
			return
		}

		response := cachedResponse{
			StatusCode: status,
			Body:       w.body.Bytes(),
			Headers:    extractResponseHeaders(c),
		}
		if err := setCachedResponse(context.WithoutCancel(ctx), store, cacheKey, &response); err != nil {
			log.Printf("[IDEMPOTENCY] failed to store response: %v", err)
			store.Del(context.WithoutCancel(ctx), cacheKey)
		}
	}
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// replay writes the stored response, or 409 while the original is in flight.
func replay(c *gin.Context, store IdempotencyStore, cacheKey string) {
	data, err := store.Get(c.Request.Context(), cacheKey).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[IDEMPOTENCY] redis unavailable, processing without key: %v", err)
		c.Next()
		return
	}

	if errors.Is(err, redis.Nil) || string(data) == inFlightMarker {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
		return
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
		return
	}

	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

// setCachedResponse stores a response in Redis.
func setCachedResponse(ctx context.Context, store IdempotencyStore, key string, response *cachedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data, idempotencyTTL).Err()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
