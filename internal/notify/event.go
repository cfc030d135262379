// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account notifications (reset codes, reset
// confirmations) to an external sender without blocking the caller.
package notify

import (
	"context"
	"time"
)

// Event types.
const (
	TypeResetPassword        = "user_reset_password"
	TypeResetPasswordSuccess = "user_reset_password_success"
)

// User identifies the recipient of an event.
type User struct {
	UID         string         `json:"uid"`
	Email       string         `json:"email,omitempty"`
	Username    string         `json:"username,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Event is a single notification request.
type Event struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
	IP   string    `json:"ip,omitempty"`
	User User      `json:"user"`
	// Code carries the signed reset code for TypeResetPassword.
	Code string `json:"code,omitempty"`
}

// Sender delivers one event. Implementations may block on network I/O.
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, event Event) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}
