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
	"iter"
	"maps"
	"slices"
)

// Values is a resolved, ordered name to value mapping. It is built per
// call and never cached.
type Values struct {
	names  []string
	values map[string]any
}

func newValues(capacity int) *Values {
	return &Values{
		names:  make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

func (v *Values) add(name string, value any) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Len returns the number of entries.
func (v *Values) Len() int {
	return len(v.names)
}

// Names returns the names in resolution order.
func (v *Values) Names() []string {
	return slices.Clone(v.names)
}

// Get returns the value for name.
func (v *Values) Get(name string) (any, bool) {
	value, ok := v.values[name]
	return value, ok
}

// All yields name/value pairs in resolution order.
func (v *Values) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range v.names {
			if !yield(name, v.values[name]) {
				return
			}
		}
	}
}

// Map returns an unordered copy of the values.
func (v *Values) Map() map[string]any {
	return maps.Clone(v.values)
}
