// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"codeberg.org/oliverandrich/go-auth-service/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
}

func TestHealth_OK(t *testing.T) {
	h := handlers.New(handlers.HealthCheck{
		Name:  "database",
		Check: func(context.Context) error { return nil },
	})
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)

	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestHealth_Degraded(t *testing.T) {
	h := handlers.New(
		handlers.HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		handlers.HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	)
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)

	require.NoError(t, h.Health(c))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "unavailable", body["redis"])
}

func TestHealth_NoChecks(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/health", nil)

	require.NoError(t, handlers.New().Health(c))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.GET("/boom", func(echo.Context) error { return errors.New("boom") })
	e.GET("/teapot", func(echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{"/missing", http.StatusNotFound, "Not Found"},
		{"/boom", http.StatusInternalServerError, "An unexpected error occurred, please try again later."},
		{"/teapot", http.StatusTeapot, "short and stout"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "", nil)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, message(t, rec))
		})
	}
}
