// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"maps"
	"time"
)

// Account is the per-user credential record, keyed by UID.
//
// Password fields are either legacy (PasswordSalt nil) or salted (PasswordSalt
// set); SetPassword is the only way the core writes them.
type Account struct {
	UID                string
	PasswordHash       string
	PasswordSalt       *string
	AccessToken        string
	AccessTokenCreated time.Time
	PasswordResetCode  *string
	LastSignout        *time.Time
	LastSignoutIP      string

	// Version is the store revision the record was read or committed at. Zero
	// means unknown.
	Version int64

	// Profile fields. The core only reads them to compose notifications.
	Email       *string
	Username    string
	DisplayName string
	Settings    map[string]any
}

// IsLegacy reports whether the account still uses the unsalted hash.
func (a *Account) IsLegacy() bool {
	return a.PasswordSalt == nil
}

// SetPassword replaces both password fields with a salted hash.
func (a *Account) SetPassword(h PasswordHash) {
	salt := h.Salt
	a.PasswordHash = h.Hash
	a.PasswordSalt = &salt
}

// Clone returns a copy that shares no pointers with a. Settings is copied one
// level deep.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.PasswordSalt = clonePtr(a.PasswordSalt)
	c.PasswordResetCode = clonePtr(a.PasswordResetCode)
	c.LastSignout = clonePtr(a.LastSignout)
	c.Email = clonePtr(a.Email)
	if a.Settings != nil {
		c.Settings = maps.Clone(a.Settings)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
