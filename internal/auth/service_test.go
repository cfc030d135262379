// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/session"
	"github.com/holomush/authcore/pkg/errutil"
)

func TestNewService_Validation(t *testing.T) {
	valid := func() auth.Deps {
		return auth.Deps{
			Store:   brokenStore{},
			Hasher:  newTestHasher(),
			Cache:   auth.NewAccountCache(),
			Clients: session.NewRegistry(),
			Secret:  testSecret,
		}
	}

	tests := []struct {
		name   string
		mutate func(*auth.Deps)
		opts   []auth.ServiceOption
		msg    string
	}{
		{name: "store", mutate: func(d *auth.Deps) { d.Store = nil }, msg: "account store is required"},
		{name: "hasher", mutate: func(d *auth.Deps) { d.Hasher = nil }, msg: "password hasher is required"},
		{name: "cache", mutate: func(d *auth.Deps) { d.Cache = nil }, msg: "session cache is required"},
		{name: "clients", mutate: func(d *auth.Deps) { d.Clients = nil }, msg: "client registry is required"},
		{name: "secret", mutate: func(d *auth.Deps) { d.Secret = nil }, msg: "signing secret is required"},
		{name: "logger", mutate: func(*auth.Deps) {}, opts: []auth.ServiceOption{auth.WithLogger(nil)}, msg: "logger is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			svc, err := auth.NewService(d, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, svc)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("notifier is optional", func(t *testing.T) {
		svc, err := auth.NewService(valid())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestService_RecordsFlowOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := auth.NewMetrics(reg)

	f := newFixture(t)
	f.seed(t, "U1", "OldPass1", "")
	svc, err := auth.NewService(auth.Deps{
		Store:   f.store,
		Hasher:  f.hasher,
		Cache:   f.cache,
		Clients: f.clients,
		Secret:  testSecret,
	}, auth.WithMetrics(metrics))
	require.NoError(t, err)

	_, err = svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass2"})
	require.NoError(t, err)
	_, err = svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{UID: "U1", OldPassword: "OldPass1", NewPassword: "NewPass3"})
	require.Error(t, err)
	_, err = svc.ChangePassword(context.Background(), auth.ChangePasswordRequest{UID: "U1", OldPassword: "NewPass2", NewPassword: "short"})
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Flows.WithLabelValues(auth.ActionChangePassword, "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Flows.WithLabelValues(auth.ActionChangePassword, "wrong_password")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Flows.WithLabelValues(auth.ActionChangePassword, "password_requirement_mismatch")), 0)
}
