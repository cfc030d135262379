// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
)

func TestChangePassword_Succeeds(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "OldPass1", "tok-1")

	public, err := f.svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{
		UID:         "U1",
		OldPassword: "OldPass1",
		NewPassword: "NewPass2",
		AccessToken: "tok-1",
		ClientIP:    "198.51.100.4",
	})
	require.NoError(t, err)

	stored := f.get(t, "U1")
	assert.True(t, f.hasher.Verify("NewPass2", stored))
	assert.False(t, f.hasher.Verify("OldPass1", stored))
	assert.NotEqual(t, "tok-1", stored.AccessToken)
	assert.NotEmpty(t, stored.AccessToken)
	assert.Equal(t, f.now, stored.AccessTokenCreated)
	require.NotNil(t, stored.PasswordSalt)

	decoded, err := auth.ParsePublicAccessToken(public, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "U1", decoded.UID)
	assert.Equal(t, "198.51.100.4", decoded.IP)
	assert.Equal(t, stored.AccessToken, decoded.AccessToken)

	cached, ok := f.cache.Get("U1")
	require.True(t, ok)
	assert.Equal(t, stored.AccessToken, cached.AccessToken)

	assert.Contains(t, f.logs.String(), `"action":"auth.change_password"`)
	assert.NotContains(t, f.logs.String(), "NewPass2")
}

func TestChangePassword_UpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	f.seedLegacy(t, "U1", "OldPass1")

	_, err := f.svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{
		UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass2",
	})
	require.NoError(t, err)

	stored := f.get(t, "U1")
	assert.False(t, stored.IsLegacy())
	assert.True(t, f.hasher.Verify("NewPass2", stored))
}

func TestChangePassword_Failures(t *testing.T) {
	tests := []struct {
		name string
		req  auth.ChangePasswordRequest
		want auth.Code
	}{
		{
			name: "new password too short",
			req:  auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "short"},
			want: auth.CodePasswordRequirementMismatch,
		},
		{
			name: "new password without digit",
			req:  auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPassword"},
			want: auth.CodePasswordRequirementMismatch,
		},
		{
			name: "new password with space",
			req:  auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "New Pass2"},
			want: auth.CodePasswordRequirementMismatch,
		},
		{
			name: "policy is checked before the user exists",
			req:  auth.ChangePasswordRequest{UID: "ghost", OldPassword: "OldPass1", NewPassword: "short"},
			want: auth.CodePasswordRequirementMismatch,
		},
		{
			name: "unknown user",
			req:  auth.ChangePasswordRequest{UID: "ghost", OldPassword: "OldPass1", NewPassword: "NewPass2"},
			want: auth.CodeUnknownUser,
		},
		{
			name: "wrong old password",
			req:  auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass9", NewPassword: "NewPass2"},
			want: auth.CodeWrongPassword,
		},
		{
			name: "stale access token",
			req:  auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass2", AccessToken: "tok-0"},
			want: auth.CodeWrongAccessToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "U1", "OldPass1", "tok-1")
			before := f.get(t, "U1")

			public, err := f.svc.ChangePassword(context.Background(), tt.req)
			requireCode(t, err, tt.want)
			assert.Empty(t, public)

			assert.Equal(t, before, f.get(t, "U1"), "record must be unchanged")
			_, cached := f.cache.Get("U1")
			assert.False(t, cached)
		})
	}
}

func TestChangePassword_ClearedTokenRejectsPresentedToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "OldPass1", "")

	_, err := f.svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{
		UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass2", AccessToken: "anything",
	})
	requireCode(t, err, auth.CodeWrongAccessToken)
}

func TestChangePassword_ConcurrentCallsWithSameOldPassword(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "OldPass1", "")

	candidates := []string{"NewPass2", "NewPass3", "NewPass4", "NewPass5"}
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i, pw := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{
				UID: "U1", OldPassword: "OldPass1", NewPassword: pw,
			})
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one change succeeded")
			winner = i
			continue
		}
		requireCode(t, err, auth.CodeWrongPassword)
	}
	require.NotEqual(t, -1, winner, "no change succeeded")

	stored := f.get(t, "U1")
	assert.True(t, f.hasher.Verify(candidates[winner], stored))
	assert.False(t, f.hasher.Verify("OldPass1", stored))
}

func TestChangePassword_InfrastructureFailureIsOpaque(t *testing.T) {
	f := newFixture(t, withStore(brokenStore{}))

	_, err := f.svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{
		UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass2", ClientIP: "192.0.2.1",
	})
	requireCode(t, err, auth.CodeUnexpected)
	assert.NotContains(t, err.Error(), "connection refused")
	assert.NotContains(t, err.Error(), "db.internal")

	logs := f.logs.String()
	assert.Contains(t, logs, "auth flow failed")
	assert.Contains(t, logs, "STORE_COMMIT_FAILED")
	assert.Contains(t, logs, `"uid":"U1"`)
	assert.Contains(t, logs, `"ip":"192.0.2.1"`)
	assert.Contains(t, logs, `"action":"auth.change_password"`)
}
