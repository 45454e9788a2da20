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

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	TLS       TLSConfig
	Session   SessionConfig
	SMTP      SMTPConfig
	Auth      AuthConfig
	WebAuthn  WebAuthnConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outgoing mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	RequireVerification bool
	GitHubClientID      string
	GitHubClientSecret  string
}

// GitHubEnabled reports whether GitHub login is configured.
func (c AuthConfig) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

type WebAuthnConfig struct {
	RPID          string // Relying Party ID (domain), e.g. "localhost"
	RPOrigin      string // Relying Party Origin (full URL), e.g. "http://localhost:8080"
	RPDisplayName string // Display name shown to users
}

type OCRConfig struct {
	Binary    string
	Languages string // tesseract -l value, e.g. "eng+deu"
	Timeout   time.Duration
}

type LLMConfig struct { //nolint:govet // fieldalignment not critical
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

type StorageConfig struct {
	Backend     string // local, s3
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
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
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
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
		Auth: AuthConfig{
			RequireVerification: cmd.Bool("require-verification"),
			GitHubClientID:      cmd.String("github-client-id"),
			GitHubClientSecret:  cmd.String("github-client-secret"),
		},
		WebAuthn: WebAuthnConfig{
			RPID:          cmd.String("webauthn-rp-id"),
			RPOrigin:      cmd.String("webauthn-rp-origin"),
			RPDisplayName: cmd.String("webauthn-rp-display-name"),
		},
		OCR: OCRConfig{
			Binary:    cmd.String("ocr-binary"),
			Languages: cmd.String("ocr-languages"),
			Timeout:   cmd.Duration("ocr-timeout"),
		},
		LLM: LLMConfig{
			APIKey:      cmd.String("llm-api-key"),
			BaseURL:     cmd.String("llm-base-url"),
			Model:       cmd.String("llm-model"),
			Timeout:     cmd.Duration("llm-timeout"),
			MaxAttempts: int(cmd.Int("llm-max-attempts")),
		},
		Storage: StorageConfig{
			Backend:     cmd.String("storage-backend"),
			Dir:         cmd.String("storage-dir"),
			S3Bucket:    cmd.String("s3-bucket"),
			S3Region:    cmd.String("s3-region"),
			S3Endpoint:  cmd.String("s3-endpoint"),
			S3AccessKey: cmd.String("s3-access-key"),
			S3SecretKey: cmd.String("s3-secret-key"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: int(cmd.Int("rate-limit-rpm")),
			Burst:             int(cmd.Int("rate-limit-burst")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyWebAuthnDefaults(cfg)

	return cfg
}

// applyWebAuthnDefaults sets WebAuthn defaults based on the resolved BaseURL.
func applyWebAuthnDefaults(cfg *Config) {
	if cfg.WebAuthn.RPID == "" {
		cfg.WebAuthn.RPID = cfg.Server.Host
	}
	if cfg.WebAuthn.RPOrigin == "" {
		cfg.WebAuthn.RPOrigin = cfg.Server.BaseURL
	}
	if cfg.WebAuthn.RPDisplayName == "" {
		cfg.WebAuthn.RPDisplayName = "Product Scan"
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, serverFlags()...)
	flags = append(flags, sessionFlags()...)
	flags = append(flags, mailFlags()...)
	flags = append(flags, authFlags()...)
	flags = append(flags, identifyFlags()...)
	flags = append(flags, storageFlags()...)
	return flags
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "Host to bind to", Sources: source("HOST", "server.host")},
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on", Sources: source("PORT", "server.port")},
		&cli.StringFlag{Name: "base-url", Usage: "Base URL for the application", Sources: source("BASE_URL", "server.base_url")},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   10,
			Usage:   "Maximum request body size in MB (images are sent base64 encoded)",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level (debug, info, warn, error)", Sources: source("LOG_LEVEL", "log.level")},
		&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format (text, json)", Sources: source("LOG_FORMAT", "log.format")},
		&cli.StringFlag{Name: "database-dsn", Value: "./data/productscan.db", Usage: "Database DSN", Sources: source("DATABASE_DSN", "database.dsn")},
		&cli.StringFlag{Name: "tls-mode", Value: "auto", Usage: "TLS mode (auto, acme, manual, off)", Sources: source("TLS_MODE", "tls.mode")},
		&cli.StringFlag{Name: "tls-cert-dir", Value: "./data/certs", Usage: "ACME certificate cache directory", Sources: source("TLS_CERT_DIR", "tls.cert_dir")},
		&cli.StringFlag{Name: "tls-email", Usage: "Email for ACME/Let's Encrypt registration", Sources: source("TLS_EMAIL", "tls.email")},
		&cli.StringFlag{Name: "tls-cert-file", Usage: "Path to TLS certificate file (manual mode)", Sources: source("TLS_CERT_FILE", "tls.cert_file")},
		&cli.StringFlag{Name: "tls-key-file", Usage: "Path to TLS private key file (manual mode)", Sources: source("TLS_KEY_FILE", "tls.key_file")},
		&cli.IntFlag{Name: "rate-limit-rpm", Value: 30, Usage: "Requests per minute per IP on expensive endpoints (0 disables)", Sources: source("RATE_LIMIT_RPM", "rate_limit.requests_per_minute")},
		&cli.IntFlag{Name: "rate-limit-burst", Value: 10, Usage: "Rate limiter burst size", Sources: source("RATE_LIMIT_BURST", "rate_limit.burst")},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "session-cookie-name", Value: "_session", Usage: "Session cookie name", Sources: source("SESSION_COOKIE_NAME", "session.cookie_name")},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{Name: "session-hash-key", Usage: "Session hash key (32-byte hex, auto-generated if empty in dev)", Sources: source("SESSION_HASH_KEY", "session.hash_key")},
		&cli.StringFlag{Name: "session-block-key", Usage: "Session block key for encryption (32-byte hex, optional)", Sources: source("SESSION_BLOCK_KEY", "session.block_key")},
	}
}

func mailFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "smtp-host", Usage: "SMTP server host (empty disables email)", Sources: source("SMTP_HOST", "smtp.host")},
		&cli.IntFlag{Name: "smtp-port", Value: 587, Usage: "SMTP server port", Sources: source("SMTP_PORT", "smtp.port")},
		&cli.StringFlag{Name: "smtp-username", Usage: "SMTP username", Sources: source("SMTP_USERNAME", "smtp.username")},
		&cli.StringFlag{Name: "smtp-password", Usage: "SMTP password", Sources: source("SMTP_PASSWORD", "smtp.password")},
		&cli.StringFlag{Name: "smtp-from", Usage: "Sender address", Sources: source("SMTP_FROM", "smtp.from")},
		&cli.StringFlag{Name: "smtp-from-name", Value: "Product Scan", Usage: "Sender display name", Sources: source("SMTP_FROM_NAME", "smtp.from_name")},
		&cli.BoolFlag{Name: "smtp-tls", Value: true, Usage: "Use TLS for SMTP", Sources: source("SMTP_TLS", "smtp.tls")},
	}
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "require-verification",
			Value:   true,
			Usage:   "Require a verified email before password login (only when SMTP is configured)",
			Sources: source("REQUIRE_VERIFICATION", "auth.require_verification"),
		},
		&cli.StringFlag{Name: "github-client-id", Usage: "GitHub OAuth client ID", Sources: source("GITHUB_CLIENT_ID", "auth.github_client_id")},
		&cli.StringFlag{Name: "github-client-secret", Usage: "GitHub OAuth client secret", Sources: source("GITHUB_CLIENT_SECRET", "auth.github_client_secret")},
		&cli.StringFlag{Name: "webauthn-rp-id", Usage: "WebAuthn Relying Party ID (domain, defaults to host)", Sources: source("WEBAUTHN_RP_ID", "webauthn.rp_id")},
		&cli.StringFlag{Name: "webauthn-rp-origin", Usage: "WebAuthn Relying Party Origin (full URL, defaults to base_url)", Sources: source("WEBAUTHN_RP_ORIGIN", "webauthn.rp_origin")},
		&cli.StringFlag{Name: "webauthn-rp-display-name", Value: "Product Scan", Usage: "WebAuthn Relying Party display name", Sources: source("WEBAUTHN_RP_DISPLAY_NAME", "webauthn.rp_display_name")},
	}
}

func identifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ocr-binary", Value: "tesseract", Usage: "Path to the tesseract binary", Sources: source("OCR_BINARY", "ocr.binary")},
		&cli.StringFlag{Name: "ocr-languages", Value: "eng", Usage: "Tesseract language codes", Sources: source("OCR_LANGUAGES", "ocr.languages")},
		&cli.DurationFlag{Name: "ocr-timeout", Value: 30 * time.Second, Usage: "Maximum duration of a text extraction", Sources: source("OCR_TIMEOUT", "ocr.timeout")},
		&cli.StringFlag{Name: "llm-api-key", Usage: "API key for the vision model", Sources: source("OPENAI_API_KEY", "llm.api_key")},
		&cli.StringFlag{
			Name:    "llm-base-url",
			Value:   "https://api.openai.com/v1/chat/completions",
			Usage:   "OpenAI-compatible chat completions endpoint",
			Sources: source("LLM_BASE_URL", "llm.base_url"),
		},
		&cli.StringFlag{Name: "llm-model", Value: "gpt-4o", Usage: "Vision model name", Sources: source("LLM_MODEL", "llm.model")},
		&cli.DurationFlag{Name: "llm-timeout", Value: 30 * time.Second, Usage: "Maximum duration of a classification", Sources: source("LLM_TIMEOUT", "llm.timeout")},
		&cli.IntFlag{Name: "llm-max-attempts", Value: 1, Usage: "HTTP attempts per classification on transient errors", Sources: source("LLM_MAX_ATTEMPTS", "llm.max_attempts")},
	}
}

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-backend", Value: "local", Usage: "Image storage backend (local, s3)", Sources: source("STORAGE_BACKEND", "storage.backend")},
		&cli.StringFlag{Name: "storage-dir", Value: "./data/uploads", Usage: "Directory for the local backend", Sources: source("STORAGE_DIR", "storage.dir")},
		&cli.StringFlag{Name: "s3-bucket", Usage: "S3 bucket name", Sources: source("S3_BUCKET", "storage.s3_bucket")},
		&cli.StringFlag{Name: "s3-region", Value: "us-east-1", Usage: "S3 region", Sources: source("S3_REGION", "storage.s3_region")},
		&cli.StringFlag{Name: "s3-endpoint", Usage: "Custom S3 endpoint, e.g. MinIO", Sources: source("S3_ENDPOINT", "storage.s3_endpoint")},
		&cli.StringFlag{Name: "s3-access-key", Usage: "S3 access key", Sources: source("S3_ACCESS_KEY", "storage.s3_access_key")},
		&cli.StringFlag{Name: "s3-secret-key", Usage: "S3 secret key", Sources: source("S3_SECRET_KEY", "storage.s3_secret_key")},
	}
}
