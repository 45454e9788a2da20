// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/database"
	"codeberg.org/oliverandrich/productscan/internal/handlers"
	"codeberg.org/oliverandrich/productscan/internal/i18n"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/auth"
	"codeberg.org/oliverandrich/productscan/internal/services/email"
	"codeberg.org/oliverandrich/productscan/internal/services/identify"
	"codeberg.org/oliverandrich/productscan/internal/services/llm"
	"codeberg.org/oliverandrich/productscan/internal/services/ocr"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"codeberg.org/oliverandrich/productscan/internal/services/webauthn"
	"codeberg.org/oliverandrich/productscan/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations included
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	e, cleanup, err := newEcho(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer cleanup()

	return startWithGracefulShutdown(ctx, e, cfg)
}

// newEcho wires services, handlers, middleware and routes.
func newEcho(ctx context.Context, cfg *config.Config, repo *repository.Repository) (*echo.Echo, func(), error) {
	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up image storage: %w", err)
	}

	sessions, err := session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up sessions: %w", err)
	}

	var mailer auth.Mailer
	if cfg.SMTP.Enabled() {
		mail, mailErr := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if mailErr != nil {
			return nil, nil, fmt.Errorf("failed to set up email: %w", mailErr)
		}
		mailer = mail
	} else {
		slog.Warn("SMTP not configured, email verification and password reset are disabled")
	}
	accounts := auth.NewService(repo, &cfg.Auth, mailer)

	var github *auth.OAuthVerifier
	if cfg.Auth.GitHubEnabled() {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, fmt.Errorf("failed to generate oauth state key: %w", err)
		}
		github, err = auth.NewGitHubVerifier(accounts,
			cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret,
			strings.TrimRight(cfg.Server.BaseURL, "/")+"/api/auth/github/callback", key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up GitHub login: %w", err)
		}
	}

	wa, err := webauthn.NewService(&cfg.WebAuthn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up webauthn: %w", err)
	}

	hub := sse.NewHub()
	identifier := identify.NewService(
		ocr.NewTesseract(ocr.WithBinary(cfg.OCR.Binary), ocr.WithLanguages(cfg.OCR.Languages)),
		llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, llm.WithMaxAttempts(cfg.LLM.MaxAttempts)),
		repo,
		images,
		identify.WithTimeouts(cfg.OCR.Timeout, cfg.LLM.Timeout),
		identify.WithPublisher(hub),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, sessions, repo)

	opts := RouteOptions{
		Limit: RateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	}
	if local, ok := images.(*storage.Local); ok {
		opts.UploadsDir = local.Root()
	}

	setupRoutes(e, &Handlers{
		App:      handlers.New(repo),
		Products: handlers.NewProducts(repo, identifier, images),
		Auth:     handlers.NewAuth(accounts, sessions, github, images),
		Passkeys: handlers.NewPasskeys(repo, wa, sessions),
		Profile:  handlers.NewProfile(repo, accounts, sessions, images),
		Admin:    handlers.NewAdmin(repo, images),
		Events:   handlers.NewSSEHandler(hub),
	}, opts)

	return e, wa.Close, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	serve := func(name string, fn func() error) {
		go func() {
			if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	// HTTP-01 challenges and redirect, ACME only
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeACME:
		serve("https", func() error { return startTLSServer(e, ":443", tlsResult.TLSConfig) })
		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		serve("http redirect", httpServer.ListenAndServe)
	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serve("https", func() error { return startTLSServer(e, addr, tlsResult.TLSConfig) })
	default:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serve("http", func() error { return e.Start(addr) })
	}
	slog.Info("server running", "url", cfg.Server.BaseURL, "tls", tlsResult.Mode)

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
