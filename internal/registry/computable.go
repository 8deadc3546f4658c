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
	"os"
	"runtime"
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// Computable produces the current value of a derived setting. It is
// evaluated on every read and never stored.
type Computable interface {
	Compute() (any, error)
}

// Constant is a derived value that never changes.
type Constant struct {
	Value any
}

func (c Constant) Compute() (any, error) {
	return c.Value, nil
}

// Func is an anonymous computation.
type Func func() (any, error)

func (f Func) Compute() (any, error) {
	return f()
}

// Named is a computation registered in a Computations table under Name.
type Named struct {
	Name string
	fn   func() (any, error)
}

func (n Named) Compute() (any, error) {
	if n.fn == nil {
		return nil, fmt.Errorf("computation %q is not bound", n.Name)
	}
	return n.fn()
}

var errUnknownComputation = errors.New("unknown computation")

// Computations is a table of named computations that declarations can
// refer to by name.
type Computations struct {
	funcs map[string]func() (any, error)
}

var processStart = time.Now()

// NewComputations returns a table holding the builtin computations:
// hostname, pid, go_version and started_at.
func NewComputations() *Computations {
	c := &Computations{funcs: map[string]func() (any, error){}}
	c.Add("hostname", func() (any, error) {
		return os.Hostname()
	})
	c.Add("pid", func() (any, error) {
		return int64(os.Getpid()), nil
	})
	c.Add("go_version", func() (any, error) {
		return runtime.Version(), nil
	})
	c.Add("started_at", func() (any, error) {
		return civil.DateTimeOf(processStart.UTC()), nil
	})
	return c
}

// Add registers or replaces a computation.
func (c *Computations) Add(name string, fn func() (any, error)) {
	c.funcs[name] = fn
}

// Lookup binds a Named computation.
func (c *Computations) Lookup(name string) (Named, error) {
	fn, ok := c.funcs[name]
	if !ok {
		return Named{}, fmt.Errorf("%w %q", errUnknownComputation, name)
	}
	return Named{Name: name, fn: fn}, nil
}

// Names returns the registered computation names, sorted.
func (c *Computations) Names() []string {
	names := make([]string, 0, len(c.funcs))
	for n := range c.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
