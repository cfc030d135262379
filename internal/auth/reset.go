// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// AccessTokenBytes is the entropy of a server-issued access token.
const AccessTokenBytes = 32

// GenerateResetCode returns a fresh single-use reset code.
func GenerateResetCode() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	return id.String(), nil
}

// VerifyResetCode reports whether presented matches the account's pending
// reset code. An account with no pending code never matches.
func VerifyResetCode(account *Account, presented string) bool {
	if account == nil || account.PasswordResetCode == nil || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*account.PasswordResetCode), []byte(presented)) == 1
}

// GenerateAccessToken returns a new random access token.
func GenerateAccessToken() (string, error) {
	b := make([]byte, AccessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("ACCESS_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", AccessTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// VerifyAccessToken compares a presented access token with the stored one in
// constant time. A cleared token never matches.
func VerifyAccessToken(account *Account, presented string) bool {
	if account == nil || account.AccessToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(account.AccessToken), []byte(presented)) == 1
}
