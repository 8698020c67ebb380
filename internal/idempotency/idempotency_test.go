package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryClaimer struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memoryClaimer) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryClaimer) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func serve(h http.Handler, method, key string) int {
	return serveAt(h, method, "/inventory_levels/adjust", key)
}

func serveAt(h http.Handler, method, target, key string) int {
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddlewareRejectsReplay(t *testing.T) {
	claimer := &memoryClaimer{keys: map[string]bool{}}
	calls := 0
	h := Middleware(claimer, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "k1"))
	assert.Equal(t, http.StatusConflict, serve(h, http.MethodPost, "k1"))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "k2"))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "k1"))
	assert.Equal(t, 4, calls)
}

func TestMiddlewareScopesKeysPerRoute(t *testing.T) {
	claimer := &memoryClaimer{keys: map[string]bool{}}
	h := Middleware(claimer, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, serveAt(h, http.MethodPost, "/inventory_levels/connect", "k"))
	assert.Equal(t, http.StatusCreated, serveAt(h, http.MethodPost, "/inventory_levels/adjust", "k"))
	assert.Equal(t, http.StatusConflict, serveAt(h, http.MethodPost, "/inventory_levels/connect", "k"))
	assert.Equal(t, http.StatusConflict, serveAt(h, http.MethodPost, "/inventory_levels/adjust?x=1", "k"))
}

func TestMiddlewareReleasesOnServerError(t *testing.T) {
	claimer := &memoryClaimer{keys: map[string]bool{}}
	status := http.StatusInternalServerError
	h := Middleware(claimer, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodPost, "k"))
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "k"))
	assert.Equal(t, http.StatusConflict, serve(h, http.MethodPost, "k"))
}

func TestMiddlewareFailsOpen(t *testing.T) {
	claimer := &memoryClaimer{keys: map[string]bool{}, err: errors.New("redis down")}
	h := Middleware(claimer, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "k"))
	assert.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "k"))
}

func TestRedisClaimer(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	c := NewRedisClaimer(client)
	key := uuid.NewString()

	ok, err := c.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, key))
	ok, err = c.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.Release(ctx, key))
}
