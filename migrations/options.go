// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package migrations holds the options shared by the migration version
// checks of every database the service talks to.
package migrations

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// CheckMode defines how migration version checking should behave
type CheckMode int

const (
	// CheckModeWait waits for migrations to complete, failing if they don't complete within timeout
	CheckModeWait CheckMode = iota
	// CheckModeWarn logs warnings about version mismatches but continues
	CheckModeWarn
	// CheckModeSkip skips migration checking entirely
	CheckModeSkip
)

func (m CheckMode) String() string {
	switch m {
	case CheckModeWait:
		return "wait"
	case CheckModeWarn:
		return "warn"
	case CheckModeSkip:
		return "skip"
	}
	return fmt.Sprintf("CheckMode(%d)", int(m))
}

// CheckOptions contains options for migration version checking
type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

// CheckOption is a function that modifies CheckOptions
type CheckOption func(*CheckOptions)

// WithCheckMode sets the check mode
func WithCheckMode(mode CheckMode) CheckOption {
	return func(opts *CheckOptions) {
		opts.Mode = mode
	}
}

// WithTimeout sets the timeout for waiting for migrations
func WithTimeout(timeout time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.Timeout = timeout
	}
}

// WithRetryInterval sets the interval between migration checks
func WithRetryInterval(interval time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.RetryInterval = interval
	}
}

// WithAllowDirty allows proceeding even if migrations are in dirty state
func WithAllowDirty(allow bool) CheckOption {
	return func(opts *CheckOptions) {
		opts.AllowDirty = allow
	}
}

// DefaultCheckOptions returns default options for migration checking
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       60 * time.Second,
		RetryInterval: 5 * time.Second,
		AllowDirty:    false,
	}
}

// FromEnv returns the default options overridden by environment
// variables: PREFIX_MIGRATION_CHECK_ENABLED, MIGRATION_CHECK_TIMEOUT,
// MIGRATION_CHECK_RETRY_INTERVAL and MIGRATION_CHECK_ALLOW_DIRTY.
// Unparseable durations keep their defaults.
func FromEnv(prefix string) CheckOptions {
	opts := DefaultCheckOptions()
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	if val := os.Getenv(prefix + "MIGRATION_CHECK_ENABLED"); val != "" && !strings.EqualFold(val, "true") {
		opts.Mode = CheckModeSkip
	}
	if val := os.Getenv("MIGRATION_CHECK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			opts.Timeout = d
		}
	}
	if val := os.Getenv("MIGRATION_CHECK_RETRY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			opts.RetryInterval = d
		}
	}
	if val := os.Getenv("MIGRATION_CHECK_ALLOW_DIRTY"); val != "" {
		opts.AllowDirty = strings.EqualFold(val, "true")
	}
	return opts
}

// Resolve applies opts on top of base.
func Resolve(base CheckOptions, opts ...CheckOption) CheckOptions {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
