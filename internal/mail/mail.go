// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

// Package mail provides outbound mail delivery implementations for the
// account.Mailer capability.
package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/passkeep/passkeep/internal/account"
)

// SendGridMailer delivers mail through the SendGrid HTTP API.
type SendGridMailer struct {
	client     *sendgrid.Client
	senderName string
	senderAddr string
}

// NewSendGridMailer creates a SendGridMailer.
func NewSendGridMailer(apiKey, senderName, senderAddr string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sendgrid api key is required")
	}
	if senderAddr == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sender address is required")
	}
	return &SendGridMailer{
		client:     sendgrid.NewSendClient(apiKey),
		senderName: senderName,
		senderAddr: senderAddr,
	}, nil
}

// Send delivers a single HTML message.
func (m *SendGridMailer) Send(ctx context.Context, to, subject, body string) error {
	from := sgmail.NewEmail(m.senderName, m.senderAddr)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, "", body)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			Wrap(err)
	}
	if resp.StatusCode >= 400 {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			With("status_code", resp.StatusCode).
			Errorf("sendgrid rejected message")
	}
	return nil
}

// SlogMailer logs messages instead of delivering them. It is the
// default when no SendGrid API key is configured, for local
// development and tests.
type SlogMailer struct {
	logger *slog.Logger
}

// NewSlogMailer creates a SlogMailer.
func NewSlogMailer(logger *slog.Logger) *SlogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogMailer{logger: logger}
}

// Send logs the message and reports success.
func (m *SlogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "mail delivery skipped (no mail provider configured)",
		"to", to,
		"subject", subject,
		"body_length", len(body),
	)
	return nil
}

// Compile-time interface checks.
var (
	_ account.Mailer = (*SendGridMailer)(nil)
	_ account.Mailer = (*SlogMailer)(nil)
)
