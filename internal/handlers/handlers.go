// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers contains the operational handlers.
type Handlers struct {
	checks []HealthCheck
}

// New creates a new Handlers instance.
func New(checks ...HealthCheck) *Handlers {
	return &Handlers{checks: checks}
}

// Health reports 200 when every dependency answers, 503 otherwise.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			slog.Error("health_check_failed", "check", check.Name, "error", err)
			status[check.Name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[check.Name] = "ok"
	}
	return c.JSON(code, status)
}
