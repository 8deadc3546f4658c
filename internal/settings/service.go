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

// Package settings resolves current setting values and validates writes.
//
// A Service joins a registry.Registry with a backend.Backend. Reads return
// stored values when present and defaults otherwise; derived settings are
// computed on every read. Writes are validated for the setting's field
// kind before exactly one backend write.
package settings

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/dynconf/internal/backend"
	"github.com/cardinalhq/dynconf/internal/fieldkind"
	"github.com/cardinalhq/dynconf/internal/registry"
)

// Service resolves and writes settings.
type Service struct {
	reg     *registry.Registry
	backend backend.Backend
}

// New creates a Service. The registry must be fully built before the
// Service is used concurrently.
func New(reg *registry.Registry, b backend.Backend) *Service {
	return &Service{
		reg:     reg,
		backend: b,
	}
}

// Registry returns the registry the Service resolves against.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// GetValues resolves every registered setting in registration order.
func (s *Service) GetValues(ctx context.Context) (*Values, error) {
	return s.resolve(ctx, s.reg.Definitions())
}

// GetValuesForKeys resolves names in the requested order. Every name must
// be registered; otherwise a *registry.NotFoundError lists all missing
// names and the backend is not read. Repeated names are resolved once.
func (s *Service) GetValuesForKeys(ctx context.Context, names registry.Names) (*Values, error) {
	if len(names) == 0 {
		return newValues(0), nil
	}
	defs, err := s.reg.LookupAll(names)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, defs)
}

// Get resolves a single setting.
func (s *Service) Get(ctx context.Context, name string) (any, error) {
	def, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	values, err := s.resolve(ctx, []*registry.Definition{def})
	if err != nil {
		return nil, err
	}
	v, _ := values.Get(name)
	return v, nil
}

// SetValue validates raw for the setting's field kind and stores the
// result. Validation errors are returned as *fieldkind.ValidationError and
// nothing is written.
func (s *Service) SetValue(ctx context.Context, name string, raw fieldkind.Input) error {
	def, err := s.reg.Lookup(name)
	if err != nil {
		return err
	}
	if def.IsDerived() {
		return fmt.Errorf("%w: %s", registry.ErrDerivedNotAssignable, name)
	}

	value, err := s.reg.Coercer().Coerce(def.Field, raw)
	if err != nil {
		return err
	}

	if err := s.backend.Set(ctx, name, value); err != nil {
		return err
	}
	slog.Debug("Setting updated", slog.String("name", name), slog.String("kind", def.Kind().String()))
	return nil
}

// resolve reads stored values for defs with at most one backend call and
// evaluates derived settings.
func (s *Service) resolve(ctx context.Context, defs []*registry.Definition) (*Values, error) {
	stored, err := s.readStored(ctx, defs)
	if err != nil {
		return nil, err
	}

	out := newValues(len(defs))
	for _, def := range defs {
		if def.IsDerived() {
			v, err := def.Derived.Compute()
			if err != nil {
				return nil, fmt.Errorf("failed to compute %s: %w", def.Name, err)
			}
			out.add(def.Name, v)
			continue
		}
		out.add(def.Name, s.storedOrDefault(def, stored))
	}
	return out, nil
}

func (s *Service) readStored(ctx context.Context, defs []*registry.Definition) (map[string]any, error) {
	var names []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, def := range defs {
		if !def.IsDerived() && seen.Add(def.Name) {
			names = append(names, def.Name)
		}
	}

	switch len(names) {
	case 0:
		return nil, nil
	case 1:
		v, found, err := s.backend.Get(ctx, names[0])
		if err != nil || !found {
			return nil, err
		}
		return map[string]any{names[0]: v}, nil
	}
	return s.backend.GetMany(ctx, names)
}

// storedOrDefault normalizes a stored value to the setting's kind. A value
// that no longer fits, for example after the setting's kind changed, is
// logged and replaced by the default.
func (s *Service) storedOrDefault(def *registry.Definition, stored map[string]any) any {
	raw, ok := stored[def.Name]
	if !ok {
		return def.Default
	}
	v, err := s.reg.Coercer().Normalize(def.Field, raw)
	if err != nil {
		slog.Warn("Stored setting does not match its kind, using default",
			slog.String("name", def.Name),
			slog.String("kind", def.Kind().String()),
			slog.Any("error", err))
		return def.Default
	}
	return v
}
