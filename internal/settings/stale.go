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

package settings

import (
	"context"
	"fmt"

	"github.com/cardinalhq/dynconf/internal/backend"
)

// StaleKeys returns the stored names that are no longer registered. The
// backend must implement backend.Lister.
func (s *Service) StaleKeys(ctx context.Context) ([]string, error) {
	lister, ok := s.backend.(backend.Lister)
	if !ok {
		return nil, fmt.Errorf("listing stored settings: %w", backend.ErrUnsupported)
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return s.reg.Missing(keys), nil
}

// RemoveStale deletes every stored value whose name is no longer
// registered and returns the names it removed.
func (s *Service) RemoveStale(ctx context.Context) ([]string, error) {
	stale, err := s.StaleKeys(ctx)
	if err != nil || len(stale) == 0 {
		return nil, err
	}
	deleter, ok := s.backend.(backend.Deleter)
	if !ok {
		return nil, fmt.Errorf("deleting stored settings: %w", backend.ErrUnsupported)
	}
	if _, err := deleter.Delete(ctx, stale); err != nil {
		return nil, err
	}
	return stale, nil
}
