// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-service/internal/middleware"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, cfg *config.Config, svc *Services) {
	checks := []handlers.HealthCheck{{Name: "database", Check: svc.Repo.Ping}}
	if svc.Limiter != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: svc.Limiter.Ping})
	}
	h := handlers.New(checks...)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(svc.Metrics.Handler()))

	// The nil check keeps a typed nil out of the interface.
	var decoder handlers.HandoffDecoder
	if svc.Handoff != nil {
		decoder = svc.Handoff
	}
	a := handlers.NewAuth(svc.Auth, handlers.CookieConfig{
		Name:   cfg.Auth.RefreshCookieName,
		Secure: cfg.Auth.CookieSecure,
	}, decoder, cfg.Auth.OAuthRedirectURL)

	g := e.Group("/auth")
	g.POST("", a.Login)
	g.GET("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/sso", a.CompleteSSO)
	// GET serves the link mailed by IssueEmailVerification.
	g.GET("/verify/:token", a.VerifyEmail)
	g.PATCH("/verify/:token", a.VerifyEmail)
	g.PATCH("/forgot", a.ForgotPassword)
	g.PATCH("/reset/:token", a.ResetPassword)

	api := e.Group("/api", middleware.RequireAccessToken(svc.Auth))
	api.GET("/me", a.Me)
}
