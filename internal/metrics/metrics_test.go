// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"github.com/labstack/echo/v4"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuth(t *testing.T) {
	m := metrics.New()

	m.RecordAuth("login", "success")
	m.RecordAuth("login", "success")
	m.RecordAuth("login", "invalid_credentials")

	assert.InDelta(t, 2, promtest.ToFloat64(m.AuthOperationsTotal.WithLabelValues("login", "success")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.AuthOperationsTotal.WithLabelValues("login", "invalid_credentials")), 0)
}

func TestMiddleware(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/auth/refresh", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/health", "/auth/refresh"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 1, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/auth/refresh", "403")), 0)
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.RecordAuth("logout", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auth_operations_total{operation="logout",outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
