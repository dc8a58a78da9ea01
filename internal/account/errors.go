// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with the unique
// constraint on username or email.
var ErrDuplicate = errors.New("duplicate account")
