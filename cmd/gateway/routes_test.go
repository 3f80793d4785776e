package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/billing"
	"syntra-ledger/internal/store/memory"
)

type downStore struct {
	*memory.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newRouter(t *testing.T, store ledger.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	engine := billing.NewEngine(store, billing.DefaultConfig(), billing.WithMetrics(billing.NewMetrics(reg)))
	r, err := setupRouter(routerDeps{
		engine:    engine,
		store:     store,
		registry:  reg,
		jwtSecret: []byte("secret"),
		rateLimit: "1000-M",
	})
	require.NoError(t, err)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := get(newRouter(t, memory.New()), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = get(newRouter(t, downStore{Store: memory.New()}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"unavailable"`)
}

func TestMetricsExposed(t *testing.T) {
	w := get(newRouter(t, memory.New()), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	w := get(newRouter(t, memory.New()), "/api/v1/documents/1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetupRouterRejectsBadRate(t *testing.T) {
	_, err := setupRouter(routerDeps{rateLimit: "often"})
	assert.Error(t, err)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t, memory.New())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bills", nil)
	req.Header.Set("Origin", "http://till.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
