package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// newRouterTestApplication builds an application with just enough wired to
// exercise routing. Note routes are covered by the api package tests.
func newRouterTestApplication() *application {
	return &application{
		config: &config.Config{
			Server: config.ServerConfig{Port: 8080, LogLevel: "info"},
		},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: track.NewMetrics(),
	}
}

func TestSetupRouter(t *testing.T) {
	t.Run("health_endpoint_responds", func(t *testing.T) {
		app := newRouterTestApplication()
		router := app.setupRouter()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})

	t.Run("metrics_endpoint_responds", func(t *testing.T) {
		app := newRouterTestApplication()
		app.metrics.Inc(track.CounterJobsEnqueued)
		router := app.setupRouter()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), track.CounterJobsEnqueued)
	})

	t.Run("unknown_route_is_not_found", func(t *testing.T) {
		app := newRouterTestApplication()
		router := app.setupRouter()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
