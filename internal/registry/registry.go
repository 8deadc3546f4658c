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

// Package registry holds the catalog of setting definitions: names,
// defaults, help text, field rules, and derived computations.
//
// A Registry is built once during startup and only read afterwards. It does
// no locking; registration must finish before concurrent readers start.
package registry

import (
	"fmt"
	"iter"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/dynconf/internal/fieldkind"
)

// Names is an ordered list of setting names.
type Names []string

// Definition describes one setting.
type Definition struct {
	Name     string
	Default  any
	HelpText string
	Field    fieldkind.Spec
	// Derived is set for settings computed on every read.
	Derived Computable
}

// Kind returns the definition's field kind.
func (d *Definition) Kind() fieldkind.Kind {
	return d.Field.Kind
}

// IsDerived reports whether the setting is computed rather than stored.
func (d *Definition) IsDerived() bool {
	return d.Derived != nil
}

// Registry is an ordered table of setting definitions.
type Registry struct {
	coercer       *fieldkind.Coercer
	preferDecimal bool
	order         []string
	defs          map[string]*Definition
	fields        map[string]fieldkind.Spec
}

// Option configures a Registry.
type Option func(*Registry)

// WithCoercer sets the coercer used to validate defaults and writes.
func WithCoercer(c *fieldkind.Coercer) Option {
	return func(r *Registry) {
		r.coercer = c
	}
}

// WithDecimalPolicy makes real number defaults infer the decimal kind
// instead of float.
func WithDecimalPolicy(preferDecimal bool) Option {
	return func(r *Registry) {
		r.preferDecimal = preferDecimal
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		coercer: fieldkind.Default(),
		defs:    map[string]*Definition{},
		fields:  map[string]fieldkind.Spec{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Coercer returns the coercer shared by everything using this registry.
func (r *Registry) Coercer() *fieldkind.Coercer {
	return r.coercer
}

// AddField registers a named field spec that definitions can refer to
// with WithFieldName.
func (r *Registry) AddField(name string, spec fieldkind.Spec) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidDefinition)
	}
	spec.Name = name
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	r.fields[name] = spec
	return nil
}

type definitionConfig struct {
	help      string
	kind      fieldkind.Kind
	spec      *fieldkind.Spec
	fieldName string
}

// DefinitionOption configures a single definition.
type DefinitionOption func(*definitionConfig)

// WithHelp sets the help text.
func WithHelp(text string) DefinitionOption {
	return func(c *definitionConfig) {
		c.help = text
	}
}

// WithKind declares the field kind instead of inferring it.
func WithKind(k fieldkind.Kind) DefinitionOption {
	return func(c *definitionConfig) {
		c.kind = k
	}
}

// WithField declares an explicit field spec.
func WithField(spec fieldkind.Spec) DefinitionOption {
	return func(c *definitionConfig) {
		c.spec = &spec
	}
}

// WithFieldName refers to a field added with AddField, or to a plain
// kind name such as "email".
func WithFieldName(name string) DefinitionOption {
	return func(c *definitionConfig) {
		c.fieldName = name
	}
}

func (r *Registry) resolveSpec(cfg definitionConfig, def any, derived bool) (fieldkind.Spec, error) {
	switch {
	case cfg.spec != nil:
		return *cfg.spec, cfg.spec.Validate()
	case cfg.fieldName != "":
		if spec, ok := r.fields[cfg.fieldName]; ok {
			return spec, nil
		}
		k, err := fieldkind.ParseKind(cfg.fieldName)
		if err != nil {
			return fieldkind.Spec{}, fmt.Errorf("unknown field %q", cfg.fieldName)
		}
		return fieldkind.SpecFor(k), fieldkind.SpecFor(k).Validate()
	case cfg.kind != fieldkind.Invalid:
		return fieldkind.SpecFor(cfg.kind), fieldkind.SpecFor(cfg.kind).Validate()
	case derived:
		return fieldkind.SpecFor(fieldkind.String), nil
	}
	k, ok := fieldkind.Infer(def, r.preferDecimal)
	if !ok {
		return fieldkind.Spec{}, fmt.Errorf("cannot infer field kind from %T default", def)
	}
	return fieldkind.SpecFor(k), nil
}

// Register adds or replaces a stored setting. The default is validated
// and normalized with the setting's field rule. Replacing a definition
// keeps its original position.
func (r *Registry) Register(name string, def any, opts ...DefinitionOption) error {
	if name == "" {
		return fmt.Errorf("%w: empty setting name", ErrInvalidDefinition)
	}
	var cfg definitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := r.resolveSpec(cfg, def, false)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, name, err)
	}
	value, err := r.coercer.Normalize(spec, def)
	if err != nil {
		return fmt.Errorf("%w: %s default: %w", ErrInvalidDefinition, name, err)
	}

	r.put(&Definition{
		Name:     name,
		Default:  value,
		HelpText: cfg.help,
		Field:    spec,
	})
	return nil
}

// RegisterDerived adds or replaces a derived setting. Its kind defaults
// to string and is informational only.
func (r *Registry) RegisterDerived(name string, c Computable, opts ...DefinitionOption) error {
	if name == "" {
		return fmt.Errorf("%w: empty setting name", ErrInvalidDefinition)
	}
	if c == nil {
		return fmt.Errorf("%w: %s: nil computation", ErrInvalidDefinition, name)
	}
	var cfg definitionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	spec, err := r.resolveSpec(cfg, nil, true)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, name, err)
	}

	r.put(&Definition{
		Name:     name,
		HelpText: cfg.help,
		Field:    spec,
		Derived:  c,
	})
	return nil
}

// MustRegister is Register for static declarations; it panics on error.
func (r *Registry) MustRegister(name string, def any, opts ...DefinitionOption) {
	if err := r.Register(name, def, opts...); err != nil {
		panic(err)
	}
}

func (r *Registry) put(d *Definition) {
	if _, exists := r.defs[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.defs[d.Name] = d
}

// AllNames yields every registered name in registration order. The
// sequence can be ranged over any number of times.
func (r *Registry) AllNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range r.order {
			if !yield(name) {
				return
			}
		}
	}
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.order)
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (*Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, &NotFoundError{Names: []string{name}}
	}
	return d, nil
}

// Missing returns the names that are not registered, in encounter order
// and without duplicates.
func (r *Registry) Missing(names []string) []string {
	var missing []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		if _, ok := r.defs[name]; ok || !seen.Add(name) {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}

// LookupAll returns the definitions for names in order, or a
// *NotFoundError naming every missing entry.
func (r *Registry) LookupAll(names Names) ([]*Definition, error) {
	if missing := r.Missing(names); len(missing) > 0 {
		return nil, &NotFoundError{Names: missing}
	}
	defs := make([]*Definition, len(names))
	for i, name := range names {
		defs[i] = r.defs[name]
	}
	return defs, nil
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(r.order))
	for name := range r.AllNames() {
		defs = append(defs, r.defs[name])
	}
	return defs
}
