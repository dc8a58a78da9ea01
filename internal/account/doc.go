// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

// Package account implements the credential lifecycle for Passkeep.
//
// # Domain Types
//
// Account is the sole persisted entity. Create instances through
// NewAccount, which validates the username and requires an already
// derived password hash; direct struct initialization bypasses
// validation and may create invalid state.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration and authentication
//   - PasswordResetService - forgot-password and password-change flow
//
// Services are created with New*Service constructors that validate
// dependencies. Both are stateless; all durable state lives behind
// Repository, and reset notifications go through the Mailer capability.
package account
