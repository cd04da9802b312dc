// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for working with the file system.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ReplaceTildeInPath replaces a leading "~" by the current user's home directory.
// Returns filePath unchanged if it doesn't start with "~".
//
// Only the current user is supported: "~other/..." returns an error.
func ReplaceTildeInPath(filePath string) (string, error) {
	if filePath != "~" && !strings.HasPrefix(filePath, "~/") {
		if strings.HasPrefix(filePath, "~") {
			return "", errors.Errorf("ReplaceTildeInPath(%q): only the current user's home (\"~/\") is supported", filePath)
		}
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to find home directory for path %q", filePath)
	}
	return filepath.Join(homeDir, filePath[1:]), nil
}

// CreateFile creates (or truncates) the file in filePath, creating any missing parent directories.
// The filePath may start with "~", see ReplaceTildeInPath.
func CreateFile(filePath string) (*os.File, error) {
	filePath, err := ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory %q", dir)
		}
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create file %q", filePath)
	}
	return f, nil
}
