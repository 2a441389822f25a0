// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging sets up the daemon's one structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New creates the standard sensord logger: a JSON handler writing to
// stderr at the given level. It also sets the default slog logger so
// that third-party code using slog.Info etc. gets the same handler.
func New(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
