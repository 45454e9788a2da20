// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends localized account emails over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/i18n"
	"github.com/wneessen/go-mail"
)

// ResetExpiryHours is shown in reset emails.
const ResetExpiryHours = 1

// Service sends verification and password reset emails.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	deliver func(ctx context.Context, msg *mail.Msg) error
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}

	s := &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	s.deliver = s.dialAndSend
	return s, nil
}

// VerificationURL is the link a new user opens to confirm the address.
func (s *Service) VerificationURL(token string) string {
	return s.baseURL + "/api/verify-email?token=" + url.QueryEscape(token)
}

// ResetURL is the link to the password reset page.
func (s *Service) ResetURL(token string) string {
	return s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
}

// SendVerification sends the verification link for token to toEmail.
func (s *Service) SendVerification(ctx context.Context, toEmail, username, token string) error {
	return s.sendAction(ctx, toEmail, action{
		subject:  i18n.T(ctx, "email_verification_subject"),
		greeting: i18n.TData(ctx, "email_greeting", map[string]any{"Username": username}),
		body:     i18n.T(ctx, "email_verification_body"),
		label:    i18n.T(ctx, "email_verification_action"),
		link:     s.VerificationURL(token),
		footer:   i18n.T(ctx, "email_footer"),
	})
}

// SendPasswordReset sends the reset link for token to toEmail.
func (s *Service) SendPasswordReset(ctx context.Context, toEmail, username, token string) error {
	return s.sendAction(ctx, toEmail, action{
		subject:  i18n.T(ctx, "email_reset_subject"),
		greeting: i18n.TData(ctx, "email_greeting", map[string]any{"Username": username}),
		body:     i18n.T(ctx, "email_reset_body"),
		label:    i18n.T(ctx, "email_reset_action"),
		link:     s.ResetURL(token),
		note:     i18n.TPlural(ctx, "email_reset_expiry", ResetExpiryHours),
		footer:   i18n.T(ctx, "email_footer"),
	})
}

func (s *Service) sendAction(ctx context.Context, to string, a action) error {
	msg, err := s.newMessage(to, a.subject)
	if err != nil {
		return err
	}

	msg.SetBodyString(mail.TypeTextPlain, a.text())

	html, err := renderHTML(ctx, actionEmail(a))
	if err != nil {
		return fmt.Errorf("rendering email: %w", err)
	}
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *Service) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	return msg, nil
}

func (s *Service) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS on 465, STARTTLS elsewhere
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
