// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Redis    RedisConfig
	Handoff  HandoffConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int      // in MB
	CORSOrigins []string // frontend origins allowed to send credentials
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	Mode     string // off, manual, acme
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

// AuthConfig holds the signing secrets and token lifetimes.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	AccessTokenSecret   string
	RefreshTokenSecret  string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RefreshCookieName   string
	CookieSecure        bool
	ResetPasswordURL    string // reset links are <ResetPasswordURL>/<token>
	OAuthRedirectURL    string // browser target after a completed SSO handoff
	RotateRefreshTokens bool
	BcryptCost          int
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outbound mail goes through an SMTP server.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct { //nolint:govet // fieldalignment not critical for config structs
	URL              string
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxResetRequests int
	ResetWindow      time.Duration
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

type HandoffConfig struct {
	HashKey string // 32-byte hex string shared with the SSO gateway
	MaxAge  int    // seconds
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			CORSOrigins: cmd.StringSlice("cors-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Auth: AuthConfig{
			AccessTokenSecret:   cmd.String("access-token-secret"),
			RefreshTokenSecret:  cmd.String("refresh-token-secret"),
			AccessTokenTTL:      cmd.Duration("access-token-ttl"),
			RefreshTokenTTL:     cmd.Duration("refresh-token-ttl"),
			RefreshCookieName:   cmd.String("refresh-cookie-name"),
			CookieSecure:        cmd.Bool("cookie-secure"),
			ResetPasswordURL:    cmd.String("reset-password-url"),
			OAuthRedirectURL:    cmd.String("oauth-redirect-url"),
			RotateRefreshTokens: cmd.Bool("rotate-refresh-tokens"),
			BcryptCost:          int(cmd.Int("bcrypt-cost")),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Redis: RedisConfig{
			URL:              cmd.String("redis-url"),
			MaxLoginAttempts: int(cmd.Int("max-login-attempts")),
			LoginWindow:      cmd.Duration("login-window"),
			MaxResetRequests: int(cmd.Int("max-reset-requests")),
			ResetWindow:      cmd.Duration("reset-window"),
		},
		Handoff: HandoffConfig{
			HashKey: cmd.String("handoff-hash-key"),
			MaxAge:  int(cmd.Int("handoff-max-age")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyAuthDefaults(cfg)

	return cfg
}

// applyAuthDefaults derives link targets from the resolved BaseURL.
func applyAuthDefaults(cfg *Config) {
	if cfg.Auth.ResetPasswordURL == "" {
		cfg.Auth.ResetPasswordURL = strings.TrimSuffix(cfg.Server.BaseURL, "/") + "/reset-password"
	}
	if cfg.Auth.OAuthRedirectURL == "" {
		cfg.Auth.OAuthRedirectURL = cfg.Server.BaseURL
	}
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		return fmt.Errorf("access and refresh token secrets are required")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.RotateRefreshTokens && !c.Redis.Enabled() {
		return fmt.Errorf("refresh token rotation requires a redis url")
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if mode == "manual" || mode == "acme" {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringSliceFlag{
			Name:    "cors-origins",
			Usage:   "Frontend origins allowed to call the API with credentials",
			Sources: source("CORS_ORIGINS", "server.cors_origins"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "off",
			Usage:   "TLS mode (off, manual, acme)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for ACME certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "access-token-secret",
			Usage:   "Signing secret for access tokens",
			Sources: source("ACCESS_TOKEN_SECRET", "auth.access_token_secret"),
		},
		&cli.StringFlag{
			Name:    "refresh-token-secret",
			Usage:   "Signing secret for refresh tokens (must differ from the access secret)",
			Sources: source("REFRESH_TOKEN_SECRET", "auth.refresh_token_secret"),
		},
		&cli.DurationFlag{
			Name:    "access-token-ttl",
			Value:   15 * time.Minute,
			Usage:   "Access token lifetime",
			Sources: source("ACCESS_TOKEN_TTL", "auth.access_token_ttl"),
		},
		&cli.DurationFlag{
			Name:    "refresh-token-ttl",
			Value:   31 * 24 * time.Hour,
			Usage:   "Refresh token and cookie lifetime",
			Sources: source("REFRESH_TOKEN_TTL", "auth.refresh_token_ttl"),
		},
		&cli.StringFlag{
			Name:    "refresh-cookie-name",
			Value:   "jwt",
			Usage:   "Name of the refresh token cookie",
			Sources: source("REFRESH_COOKIE_NAME", "auth.refresh_cookie_name"),
		},
		&cli.BoolFlag{
			Name:    "cookie-secure",
			Value:   true,
			Usage:   "Send the refresh cookie over HTTPS only (SameSite=None)",
			Sources: source("COOKIE_SECURE", "auth.cookie_secure"),
		},
		&cli.StringFlag{
			Name:    "reset-password-url",
			Usage:   "Base URL of the reset password page (defaults to <base-url>/reset-password)",
			Sources: source("RESET_PASSWORD_URL", "auth.reset_password_url"),
		},
		&cli.StringFlag{
			Name:    "oauth-redirect-url",
			Usage:   "Redirect target after SSO login (defaults to base-url)",
			Sources: source("OAUTH_REDIRECT_URL", "auth.oauth_redirect_url"),
		},
		&cli.BoolFlag{
			Name:    "rotate-refresh-tokens",
			Usage:   "Issue a new refresh token on every refresh and reject replays (requires redis)",
			Sources: source("ROTATE_REFRESH_TOKENS", "auth.rotate_refresh_tokens"),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   10,
			Usage:   "bcrypt cost factor for password hashes",
			Sources: source("BCRYPT_COST", "auth.bcrypt_cost"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail is logged instead of sent when empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Redis flags
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for rate limiting and refresh token rotation (disabled when empty)",
			Sources: source("REDIS_URL", "redis.url"),
		},
		&cli.IntFlag{
			Name:    "max-login-attempts",
			Value:   10,
			Usage:   "Failed logins allowed per email and per IP within the login window",
			Sources: source("MAX_LOGIN_ATTEMPTS", "redis.max_login_attempts"),
		},
		&cli.DurationFlag{
			Name:    "login-window",
			Value:   15 * time.Minute,
			Usage:   "Login throttle window",
			Sources: source("LOGIN_WINDOW", "redis.login_window"),
		},
		&cli.IntFlag{
			Name:    "max-reset-requests",
			Value:   5,
			Usage:   "Forgot-password requests allowed per email and per IP within the reset window",
			Sources: source("MAX_RESET_REQUESTS", "redis.max_reset_requests"),
		},
		&cli.DurationFlag{
			Name:    "reset-window",
			Value:   time.Hour,
			Usage:   "Forgot-password throttle window",
			Sources: source("RESET_WINDOW", "redis.reset_window"),
		},
		// SSO handoff flags
		&cli.StringFlag{
			Name:    "handoff-hash-key",
			Usage:   "SSO handoff signing key (32-byte hex, SSO disabled when empty)",
			Sources: source("HANDOFF_HASH_KEY", "handoff.hash_key"),
		},
		&cli.IntFlag{
			Name:    "handoff-max-age",
			Value:   60,
			Usage:   "SSO handoff validity in seconds",
			Sources: source("HANDOFF_MAX_AGE", "handoff.max_age"),
		},
	}
}
