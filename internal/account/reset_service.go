// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/passkeep/passkeep/internal/observability"
	"github.com/passkeep/passkeep/pkg/errutil"
)

// Mail delivery configuration.
const (
	resetMailSubject = "Password Reset"

	// mailSendTimeout bounds the whole delivery attempt, retries included.
	mailSendTimeout = 10 * time.Second

	// mailRetryBase is the initial backoff between delivery retries.
	mailRetryBase = 250 * time.Millisecond

	// mailMaxRetries is the number of delivery retries after the first attempt.
	mailMaxRetries = 3
)

// Mailer is the outbound mail capability. Delivery is best-effort;
// the reset flow never depends on its outcome.
type Mailer interface {
	// Send delivers a single message. Body is HTML.
	Send(ctx context.Context, to, subject, body string) error
}

// PasswordResetService handles the forgot/reset-password flow.
type PasswordResetService struct {
	accounts Repository
	hasher   PasswordHasher
	mailer   Mailer
	baseURL  string
	logger   *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService.
// baseURL is the externally reachable prefix used to build reset links,
// e.g. "https://accounts.example.com".
func NewPasswordResetService(accounts Repository, hasher PasswordHasher, mailer Mailer, baseURL string) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(accounts, hasher, mailer, baseURL, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService with
// an explicit logger for mail delivery failures.
func NewPasswordResetServiceWithLogger(accounts Repository, hasher PasswordHasher, mailer Mailer, baseURL string, logger *slog.Logger) (*PasswordResetService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if baseURL == "" {
		return nil, oops.Errorf("base URL is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &PasswordResetService{
		accounts: accounts,
		hasher:   hasher,
		mailer:   mailer,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}, nil
}

// InitiateReset replaces the account's password with a freshly generated
// temporary secret and mails a reset link.
//
// The hash is persisted before mail delivery is attempted: once this
// returns nil the old password no longer authenticates, whether or not
// the mail arrived. Delivery failures are logged and counted, never
// returned. Returns ACCOUNT_NOT_FOUND when no account has the email.
func (s *PasswordResetService) InitiateReset(ctx context.Context, email string) error {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("operation", "GetByEmail").
				Wrap(err)
		}
		return oops.Code("RESET_INITIATE_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	secret, err := GenerateTempSecret()
	if err != nil {
		return oops.Code("RESET_INITIATE_FAILED").
			With("operation", "GenerateTempSecret").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(secret)
	if err != nil {
		return oops.Code("RESET_INITIATE_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, acct.ID, passwordHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("operation", "UpdatePassword").
				Wrap(err)
		}
		return oops.Code("RESET_INITIATE_FAILED").
			With("operation", "UpdatePassword").
			Wrap(err)
	}

	s.sendResetMail(ctx, acct, secret)
	return nil
}

// CompletePasswordChange replaces an account's password with a hash of
// the caller-supplied secret. Possessing the account ID is the only
// authorization the flow requires; the reset link carries nothing else.
// Returns ACCOUNT_NOT_FOUND when the ID does not resolve.
func (s *PasswordResetService) CompletePasswordChange(ctx context.Context, accountID ulid.ULID, newPassword string) error {
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err // ErrEmptyPassword already carries its code
	}

	if err := s.accounts.UpdatePassword(ctx, accountID, passwordHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		return oops.Code("RESET_COMPLETE_FAILED").
			With("operation", "UpdatePassword").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	return nil
}

// ResetLink builds the reset URL for an account.
// Format: <base-url>/change-password/<accountID>.
func (s *PasswordResetService) ResetLink(accountID ulid.ULID) string {
	return fmt.Sprintf("%s/change-password/%s", s.baseURL, accountID.String())
}

// sendResetMail delivers the reset notification with bounded retries.
// Failures are swallowed after logging; the password change has already
// been committed.
func (s *PasswordResetService) sendResetMail(ctx context.Context, acct *Account, secret string) {
	link := s.ResetLink(acct.ID)
	body := fmt.Sprintf(
		"<p>Your password was replaced with the temporary value <code>%s</code>.</p>"+
			"<p>Click <a href=%q>here</a> to choose a new password.</p>",
		secret, link,
	)

	ctx, cancel := context.WithTimeout(ctx, mailSendTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(mailMaxRetries, retry.NewFibonacci(mailRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if sendErr := s.mailer.Send(ctx, acct.Email, resetMailSubject, body); sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		observability.RecordMailDeliveryFailure("password_reset")
		errutil.LogError(s.logger, "reset mail delivery failed", oops.Code("MAIL_DELIVERY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(err))
	}
}
