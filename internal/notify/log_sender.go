// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogSender writes events to a logger. It is the sender used when no mail
// transport is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs event at info level. The reset code is never logged.
func (s *LogSender) Send(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "notification",
		"type", event.Type,
		"uid", event.User.UID,
		"email", event.User.Email,
		"ip", event.IP,
		"date", event.Date,
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
