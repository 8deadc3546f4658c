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

// Package backend defines where stored setting values live and provides
// memory, database and caching implementations.
package backend

import (
	"context"
	"errors"
)

// Backend is a key/value store of canonical setting values.
//
// Get reports found=false for names with no stored value. GetMany returns
// only the names that are present. Errors are returned as produced by the
// underlying store.
type Backend interface {
	Get(ctx context.Context, name string) (value any, found bool, err error)
	GetMany(ctx context.Context, names []string) (map[string]any, error)
	Set(ctx context.Context, name string, value any) error
}

// Lister is implemented by backends that can enumerate their stored names.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Deleter is implemented by backends that can remove stored values.
type Deleter interface {
	Delete(ctx context.Context, names []string) (int64, error)
}

// ErrUnsupported is returned when a wrapped backend lacks an optional capability.
var ErrUnsupported = errors.New("operation not supported by backend")
