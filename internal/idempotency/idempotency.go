// Package idempotency rejects replays of POST requests carrying an
// Idempotency-Key header that was already seen.
package idempotency

import (
	"context"
	"net/http"
	"time"

	"inventoryapi/internal/httpx"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderKey = "Idempotency-Key"

	keyPrefix  = "idempotency:"
	defaultTTL = 24 * time.Hour
)

// Claimer records keys. Claim reports false when key was already claimed.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisClaimer struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClaimer(client *redis.Client) *RedisClaimer {
	return &RedisClaimer{client: client, ttl: defaultTTL}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, keyPrefix+key, 1, c.ttl).Result()
}

func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// Middleware guards POST requests. A key is released again when the request
// fails with a server error so the client may retry. Claimer errors let the
// request through.
func Middleware(claimer Claimer, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Keys are scoped to method and path.
			key = r.Method + " " + r.URL.Path + " " + key

			claimed, err := claimer.Claim(r.Context(), key)
			if err != nil {
				log.Warn("Idempotency check unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				httpx.ErrorMessage(w, r, log, http.StatusConflict, "a request with this Idempotency-Key was already processed")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusInternalServerError {
				if err := claimer.Release(context.WithoutCancel(r.Context()), key); err != nil {
					log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
				}
			}
		})
	}
}
