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

package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks integration mistakes, as opposed to bad user
	// input. Every other error in this package wraps it.
	ErrConfiguration = errors.New("configuration error")

	ErrNotFound             = fmt.Errorf("%w: setting not found", ErrConfiguration)
	ErrDerivedNotAssignable = fmt.Errorf("%w: derived setting cannot be assigned", ErrConfiguration)
	ErrInvalidDefinition    = fmt.Errorf("%w: invalid setting definition", ErrConfiguration)
)

// NotFoundError lists every requested name missing from the registry.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	joined := strings.Join(e.Names, ", ")
	if len(e.Names) == 1 {
		return joined + " key not found in configuration."
	}
	return joined + " keys not found in configuration."
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrConfiguration
}
