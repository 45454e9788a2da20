// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"errors"
	"testing"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Product Scan",
		TLS:      true,
	}
}

// newCapturingService returns a service that records messages instead of dialing.
func newCapturingService(t *testing.T) (*Service, *[]*mail.Msg) {
	t.Helper()
	require.NoError(t, i18n.Init())

	svc, err := NewService(validSMTPConfig(), "https://scan.example.com/")
	require.NoError(t, err)

	var sent []*mail.Msg
	svc.deliver = func(_ context.Context, msg *mail.Msg) error {
		sent = append(sent, msg)
		return nil
	}
	return svc, &sent
}

func partContents(t *testing.T, msg *mail.Msg) []string {
	t.Helper()
	var out []string
	for _, p := range msg.GetParts() {
		content, err := p.GetContent()
		require.NoError(t, err)
		out = append(out, string(content))
	}
	return out
}

func TestNewService(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), "https://example.com")

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestURLs_TrailingSlashTrimmed(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/api/verify-email?token=abc", svc.VerificationURL("abc"))
	assert.Equal(t, "https://example.com/reset-password?token=a%2Bb", svc.ResetURL("a+b"))
}

func TestSendVerification(t *testing.T) {
	svc, sent := newCapturingService(t)
	ctx := i18n.WithLocale(context.Background(), language.English)

	require.NoError(t, svc.SendVerification(ctx, "alice@example.com", "alice", "tok123"))

	require.Len(t, *sent, 1)
	msg := (*sent)[0]
	assert.Equal(t, []string{"Verify your email address"}, msg.GetGenHeader(mail.HeaderSubject))

	to, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, to)

	parts := partContents(t, msg)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "Hello alice,")
	assert.Contains(t, parts[0], "https://scan.example.com/api/verify-email?token=tok123")
	assert.Contains(t, parts[1], `href="https://scan.example.com/api/verify-email?token=tok123"`)
	assert.Contains(t, parts[1], "Verify email")
}

func TestSendPasswordReset_German(t *testing.T) {
	svc, sent := newCapturingService(t)
	ctx := i18n.WithLocale(context.Background(), language.German)

	require.NoError(t, svc.SendPasswordReset(ctx, "bob@example.com", "bob", "reset1"))

	require.Len(t, *sent, 1)
	parts := partContents(t, (*sent)[0])
	assert.Contains(t, parts[0], "Hallo bob,")
	assert.Contains(t, parts[0], "https://scan.example.com/reset-password?token=reset1")
	assert.Contains(t, parts[0], "1 Stunde")
}

func TestSend_EscapesHTML(t *testing.T) {
	svc, sent := newCapturingService(t)

	require.NoError(t, svc.SendVerification(context.Background(), "x@example.com", "<script>", "t"))

	parts := partContents(t, (*sent)[0])
	assert.NotContains(t, parts[1], "<script>")
	assert.Contains(t, parts[1], "&lt;script&gt;")
}

func TestSend_DeliveryError(t *testing.T) {
	svc, _ := newCapturingService(t)
	svc.deliver = func(context.Context, *mail.Msg) error { return errors.New("connection refused") }

	err := svc.SendPasswordReset(context.Background(), "a@example.com", "a", "t")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending email")
}

func TestSend_InvalidRecipient(t *testing.T) {
	svc, sent := newCapturingService(t)

	err := svc.SendVerification(context.Background(), "not an address", "a", "t")

	require.Error(t, err)
	assert.Empty(t, *sent)
}
