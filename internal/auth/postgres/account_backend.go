// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores credential records in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/store"
)

// DB is the subset of *pgxpool.Pool the backend uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountBackend implements store.Backend on the accounts table. The
// version column is the compare-and-swap token.
type AccountBackend struct {
	db DB
}

// NewAccountBackend creates an AccountBackend.
func NewAccountBackend(db DB) *AccountBackend {
	return &AccountBackend{db: db}
}

const selectAccount = `
	SELECT version, password_hash, password_salt, access_token, access_token_created,
	       password_reset_code, last_signout, last_signout_ip,
	       email, username, display_name, settings
	FROM accounts
	WHERE uid = $1`

// Load reads the record for uid.
func (b *AccountBackend) Load(ctx context.Context, uid string) (*auth.Account, int64, error) {
	var (
		a            = &auth.Account{UID: uid}
		version      int64
		tokenCreated *time.Time
		settings     []byte
	)
	err := b.db.QueryRow(ctx, selectAccount, uid).Scan(
		&version,
		&a.PasswordHash,
		&a.PasswordSalt,
		&a.AccessToken,
		&tokenCreated,
		&a.PasswordResetCode,
		&a.LastSignout,
		&a.LastSignoutIP,
		&a.Email,
		&a.Username,
		&a.DisplayName,
		&settings,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, oops.Code("ACCOUNT_LOAD_FAILED").
			With("operation", "select account").
			With("uid", uid).
			Wrap(err)
	}
	if tokenCreated != nil {
		a.AccessTokenCreated = *tokenCreated
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &a.Settings); err != nil {
			return nil, 0, oops.Code("ACCOUNT_LOAD_FAILED").
				With("operation", "decode settings").
				With("uid", uid).
				Wrap(err)
		}
	}
	return a, version, nil
}

// CompareAndSwap inserts the record when expected is 0 and otherwise
// updates it only if the version still matches.
func (b *AccountBackend) CompareAndSwap(ctx context.Context, uid string, expected int64, next *auth.Account) (bool, error) {
	settings, err := encodeSettings(next.Settings)
	if err != nil {
		return false, oops.Code("ACCOUNT_WRITE_FAILED").
			With("operation", "encode settings").
			With("uid", uid).
			Wrap(err)
	}
	var tokenCreated *time.Time
	if !next.AccessTokenCreated.IsZero() {
		t := next.AccessTokenCreated
		tokenCreated = &t
	}

	args := []any{
		uid,
		next.PasswordHash,
		next.PasswordSalt,
		next.AccessToken,
		tokenCreated,
		next.PasswordResetCode,
		next.LastSignout,
		next.LastSignoutIP,
		next.Email,
		next.Username,
		next.DisplayName,
		settings,
	}

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = b.db.Exec(ctx, `
			INSERT INTO accounts (uid, password_hash, password_salt, access_token, access_token_created,
			                      password_reset_code, last_signout, last_signout_ip,
			                      email, username, display_name, settings, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
			ON CONFLICT (uid) DO NOTHING
		`, args...)
	} else {
		tag, err = b.db.Exec(ctx, `
			UPDATE accounts
			SET password_hash = $2, password_salt = $3, access_token = $4, access_token_created = $5,
			    password_reset_code = $6, last_signout = $7, last_signout_ip = $8,
			    email = $9, username = $10, display_name = $11, settings = $12,
			    version = version + 1, updated_at = now()
			WHERE uid = $1 AND version = $13
		`, append(args, expected)...)
	}
	if isConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("ACCOUNT_WRITE_FAILED").
			With("operation", "compare and swap").
			With("uid", uid).
			With("expected_version", expected).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func encodeSettings(settings map[string]any) ([]byte, error) {
	if settings == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(settings)
}

// isConflict reports errors that mean another transaction won the race.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}

var _ store.Backend = (*AccountBackend)(nil)
