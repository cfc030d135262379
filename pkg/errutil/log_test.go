// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("STORE_LOAD_FAILED").
		With("uid", "u1").
		Errorf("connection reset")

	errutil.LogError(context.Background(), logger, "change password failed", err, "action", "auth.change_password")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "change password failed", entry["msg"])
	assert.Equal(t, "STORE_LOAD_FAILED", entry["code"])
	assert.Equal(t, "auth.change_password", entry["action"])

	errCtx, ok := entry["context"].(map[string]any)
	require.True(t, ok, "context should be an object")
	assert.Equal(t, "u1", errCtx["uid"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(context.Background(), logger, "signout failed", errors.New("pool closed"), "uid", "u2")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "pool closed", entry["error"])
	assert.Equal(t, "u2", entry["uid"])
	assert.NotContains(t, entry, "code")
}
