// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/md5" //nolint:gosec // legacy accounts were hashed with unsalted MD5
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the salted hash. Changing them invalidates every stored
// salted hash, so production code uses DefaultArgon2Params.
type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id settings.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHash is a salted hash together with the salt it was derived from.
type PasswordHash struct {
	Hash string
	Salt string
}

// PasswordHasher computes and verifies password hashes.
type PasswordHasher interface {
	// HashLegacy returns the unsalted digest used by pre-existing accounts.
	// It is never used to store new passwords.
	HashLegacy(password string) string

	// HashSalted derives a hash from password and salt. An empty salt draws a
	// fresh random one.
	HashSalted(password, salt string) (PasswordHash, error)

	// Verify checks password against the account's stored hash, picking the
	// algorithm from the presence of a salt.
	Verify(password string, account *Account) bool
}

// Argon2idHasher implements PasswordHasher with MD5 for legacy records and
// argon2id for salted ones.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return NewArgon2idHasherWithParams(DefaultArgon2Params)
}

// NewArgon2idHasherWithParams creates a hasher with explicit parameters.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: p}
}

// HashLegacy returns the hex MD5 digest of password.
func (h *Argon2idHasher) HashLegacy(password string) string {
	sum := md5.Sum([]byte(password)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// HashSalted derives an argon2id key from password and salt.
func (h *Argon2idHasher) HashSalted(password, salt string) (PasswordHash, error) {
	if password == "" {
		return PasswordHash{}, ErrEmptyPassword
	}
	if salt == "" {
		raw := make([]byte, h.params.SaltLen)
		if _, err := rand.Read(raw); err != nil {
			return PasswordHash{}, oops.Code("AUTH_SALT_FAILED").
				With("operation", "crypto/rand.Read").
				Wrap(err)
		}
		salt = base64.RawStdEncoding.EncodeToString(raw)
	}
	key := argon2.IDKey([]byte(password), []byte(salt), h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return PasswordHash{
		Hash: base64.RawStdEncoding.EncodeToString(key),
		Salt: salt,
	}, nil
}

// Verify checks password against account in constant time.
func (h *Argon2idHasher) Verify(password string, account *Account) bool {
	if account == nil || password == "" || account.PasswordHash == "" {
		return false
	}
	if account.IsLegacy() {
		return equalHash(h.HashLegacy(password), account.PasswordHash)
	}
	computed, err := h.HashSalted(password, *account.PasswordSalt)
	if err != nil {
		return false
	}
	return equalHash(computed.Hash, account.PasswordHash)
}

func equalHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var _ PasswordHasher = (*Argon2idHasher)(nil)
