// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package account

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Service provides registration and authentication operations.
type Service struct {
	accounts Repository
	hasher   PasswordHasher
}

// NewService creates a new Service.
func NewService(accounts Repository, hasher PasswordHasher) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
	}, nil
}

// Register creates a new account with a hashed password.
//
// The lookup before Create only produces a friendlier error; two
// registrations racing past it are caught by the store's unique
// constraint, which surfaces as the same ACCOUNT_EXISTS code.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}

	existing, err := s.accounts.GetByUsernameOrEmail(ctx, username, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "GetByUsernameOrEmail").
			Wrap(err)
	}
	if existing != nil {
		return nil, oops.Code("ACCOUNT_EXISTS").
			With("username", username).
			Errorf("an account with this username or email already exists")
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err // ErrEmptyPassword already carries its code
	}

	acct, err := NewAccount(username, email, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, oops.Code("ACCOUNT_EXISTS").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "Create").
			With("username", username).
			Wrap(err)
	}

	return acct, nil
}

// Authenticate verifies a username/password pair and returns the account.
//
// An unknown username yields ACCOUNT_NOT_FOUND, distinct from the
// ACCOUNT_INVALID_CREDENTIALS returned on a password mismatch. Callers
// map these to different responses, so the distinction is part of the
// external contract.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("ACCOUNT_AUTH_FAILED").
			With("operation", "GetByUsername").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, oops.Code("ACCOUNT_AUTH_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return nil, oops.Code("ACCOUNT_INVALID_CREDENTIALS").Errorf("invalid password")
	}

	// Re-derive legacy hashes with current parameters. Login succeeds
	// even if the upgrade write fails.
	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if updateErr := s.accounts.UpdatePassword(ctx, acct.ID, newHash); updateErr == nil {
				acct.PasswordHash = newHash
			}
		}
	}

	return acct, nil
}
