// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package account

import (
	"crypto/rand"
	"math/big"

	"github.com/samber/oops"
)

// Temporary secret configuration.
const (
	// TempSecretLength is the length of generated temporary passwords.
	TempSecretLength = 12

	// tempSecretAlphabet is the character set for temporary passwords.
	tempSecretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateTempSecret creates a random alphanumeric temporary password.
// Characters are drawn uniformly from tempSecretAlphabet using
// crypto/rand; rejection-sampling via rand.Int avoids modulo bias.
func GenerateTempSecret() (string, error) {
	alphabetLen := big.NewInt(int64(len(tempSecretAlphabet)))

	secret := make([]byte, TempSecretLength)
	for i := range secret {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", oops.Code("RESET_SECRET_GENERATE_FAILED").Wrap(err)
		}
		secret[i] = tempSecretAlphabet[n.Int64()]
	}

	return string(secret), nil
}
