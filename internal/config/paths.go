// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const appName = "authcore"

// Dir returns the XDG config directory for authcore.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultFile is the config file read when --config is not given. A missing
// default file is not an error.
func DefaultFile() string {
	return filepath.Join(Dir(), "config.yaml")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
