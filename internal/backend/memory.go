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

package backend

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps values in a map. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	_ Backend = (*Memory)(nil)
	_ Lister  = (*Memory)(nil)
	_ Deleter = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{values: map[string]any{}}
}

func (m *Memory) Get(ctx context.Context, name string) (any, bool, error) {
	recordOperation(ctx, "memory", "get")
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *Memory) GetMany(ctx context.Context, names []string) (map[string]any, error) {
	recordOperation(ctx, "memory", "get_many")
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := m.values[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, name string, value any) error {
	recordOperation(ctx, "memory", "set")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

// Keys returns the stored names, sorted.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Delete(ctx context.Context, names []string) (int64, error) {
	recordOperation(ctx, "memory", "delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, name := range names {
		if _, ok := m.values[name]; ok {
			delete(m.values, name)
			n++
		}
	}
	return n, nil
}
