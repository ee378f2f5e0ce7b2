// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			MaxBodySize: 1,
			CORSOrigins: []string{"https://app.example.com"},
		},
		Database: config.DatabaseConfig{DSN: ":memory:"},
		TLS:      config.TLSConfig{Mode: "off"},
		Auth: config.AuthConfig{
			AccessTokenSecret:  "access-secret",
			RefreshTokenSecret: "refresh-secret",
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    24 * time.Hour,
			RefreshCookieName:  "jwt",
			ResetPasswordURL:   "https://app.example.com/reset-password",
			OAuthRedirectURL:   "https://app.example.com",
			BcryptCost:         bcrypt.MinCost,
		},
		Redis: config.RedisConfig{
			MaxLoginAttempts: 3,
			LoginWindow:      15 * time.Minute,
			MaxResetRequests: 2,
			ResetWindow:      time.Hour,
		},
	}
}

type testServer struct {
	e    *echo.Echo
	svc  *Services
	mail *bytes.Buffer
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	mail := &bytes.Buffer{}
	svc, err := NewServices(context.Background(), cfg, mail)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return &testServer{e: New(cfg, svc), svc: svc, mail: mail}
}

func withRedis(t *testing.T, cfg *config.Config) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	return mr
}

func (s *testServer) do(method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := testutil.NewRequest(method, path, strings.NewReader(body))
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth", `{"email":"`+email+`","password":"`+testutil.TestPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return findCookie(rec, "jwt")
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sendCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func TestNewServices_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.RefreshTokenSecret = cfg.Auth.AccessTokenSecret

	_, err := NewServices(context.Background(), cfg, &bytes.Buffer{})

	assert.Error(t, err)
}

func TestNewServices_InvalidHandoffKey(t *testing.T) {
	cfg := testConfig()
	cfg.Handoff.HashKey = "not-hex"

	_, err := NewServices(context.Background(), cfg, &bytes.Buffer{})

	assert.Error(t, err)
}

func TestNewServices_WithoutRedis(t *testing.T) {
	s := newTestServer(t, testConfig())

	assert.Nil(t, s.svc.Limiter)
	assert.Nil(t, s.svc.Handoff)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testConfig()
	withRedis(t, cfg)
	s := newTestServer(t, cfg)

	rec := s.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "ok", "database": "ok", "redis": "ok"}, body)
}

func TestHealthEndpoint_RedisDown(t *testing.T) {
	cfg := testConfig()
	mr := withRedis(t, cfg)
	s := newTestServer(t, cfg)
	mr.Close()

	rec := s.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/auth", `{"email":"nobody@example.com","password":"wrong"}`, nil)

	rec := s.do(http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `auth_operations_total{operation="login",outcome="invalid_credentials"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",route="/auth",status="400"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Message)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodOptions, "/auth/refresh", "", func(r *http.Request) {
		r.Header.Set(echo.HeaderOrigin, "https://app.example.com")
		r.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestCORS_UnknownOrigin(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodOptions, "/auth/refresh", "", func(r *http.Request) {
		r.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
		r.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	})

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t, testConfig())
	testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")

	rec := s.do(http.MethodPatch, "/auth/forgot", `{"email":"alice@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	mail := s.mail.String()
	assert.Contains(t, mail, "To: alice@example.com")
	const prefix = "https://app.example.com/reset-password/"
	idx := strings.Index(mail, prefix)
	require.GreaterOrEqual(t, idx, 0, mail)
	resetToken, _, _ := strings.Cut(mail[idx+len(prefix):], "\n")

	rec = s.do(http.MethodPatch, "/auth/reset/"+resetToken, `{"password":"violet tangerine lighthouse"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	withRedis(t, cfg)
	s := newTestServer(t, cfg)
	testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")

	for range 3 {
		rec := s.do(http.MethodPost, "/auth", `{"email":"alice@example.com","password":"wrong password"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := s.do(http.MethodPost, "/auth", `{"email":"alice@example.com","password":"`+testutil.TestPassword+`"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRefreshRotation(t *testing.T) {
	cfg := testConfig()
	withRedis(t, cfg)
	cfg.Auth.RotateRefreshTokens = true
	s := newTestServer(t, cfg)
	testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")
	first := s.login(t, "alice@example.com")

	rec := s.do(http.MethodGet, "/auth/refresh", "", sendCookie(first))
	require.Equal(t, http.StatusOK, rec.Code)
	second := findCookie(rec, "jwt")
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	rec = s.do(http.MethodGet, "/auth/refresh", "", sendCookie(first))
	assert.Equal(t, http.StatusForbidden, rec.Code, "replayed refresh token")

	rec = s.do(http.MethodPost, "/auth/logout", "", sendCookie(second))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/auth/refresh", "", sendCookie(second))
	assert.Equal(t, http.StatusForbidden, rec.Code, "refresh token revoked by logout")
}

func TestMeEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig())
	testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")
	rec := s.do(http.MethodPost, "/auth", `{"email":"alice@example.com","password":"`+testutil.TestPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok handlers.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = s.do(http.MethodGet, "/api/me", "", func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.AccessToken)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSSODisabledWithoutKey(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodGet, "/auth/sso?handoff=anything", "", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSSOEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Handoff = config.HandoffConfig{
		HashKey: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		MaxAge:  60,
	}
	s := newTestServer(t, cfg)
	user := testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")
	value, err := s.svc.Handoff.Encode(user.ID)
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/auth/sso?handoff="+value, "", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://app.example.com/?authenticated=true", rec.Header().Get(echo.HeaderLocation))
	assert.NotNil(t, findCookie(rec, "jwt"))
}

func TestPurgeExpiredResetTokens(t *testing.T) {
	s := newTestServer(t, testConfig())
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, s.svc.Repo, "alice@example.com")
	require.NoError(t, s.svc.Repo.SetPasswordResetToken(ctx, user.ID, "stale", time.Now().Add(-time.Minute)))

	s.svc.purgeOnce(ctx)

	got, err := s.svc.Repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResetPasswordTokenHash)
	assert.Nil(t, got.ResetPasswordExpiresAt)
}

func TestPurgeExpiredResetTokens_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		s.svc.PurgeExpiredResetTokens(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop")
	}
}

func TestVerificationLinkFromEmail(t *testing.T) {
	s := newTestServer(t, testConfig())
	user := testutil.NewTestUser(t, s.svc.Repo, "alice@example.com")
	require.NoError(t, s.svc.Auth.IssueEmailVerification(context.Background(), user.ID, ""))

	mail := s.mail.String()
	const prefix = "http://localhost:8080"
	idx := strings.Index(mail, prefix+"/auth/verify/")
	require.GreaterOrEqual(t, idx, 0, mail)
	path, _, _ := strings.Cut(mail[idx+len(prefix):], "\n")

	rec := s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth", `{"email":"alice@example.com","password":"`+testutil.TestPassword+`"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
