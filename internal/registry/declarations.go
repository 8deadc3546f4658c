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
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/dynconf/internal/fieldkind"
)

// Declarations is the static configuration surface supplied by the
// hosting application, usually as a YAML file.
type Declarations struct {
	Fields   map[string]FieldDeclaration `yaml:"fields,omitempty"`
	Settings []SettingDeclaration        `yaml:"settings,omitempty"`
	Derived  []DerivedDeclaration        `yaml:"derived,omitempty"`
}

// FieldDeclaration declares a named additional field spec.
type FieldDeclaration struct {
	Kind    string                   `yaml:"kind"`
	Choices []fieldkind.ChoiceOption `yaml:"choices,omitempty"`
	Widget  string                   `yaml:"widget,omitempty"`
}

// SettingDeclaration declares a stored setting. Field names either a
// declared field or a kind; Kind is a shorthand for the latter.
type SettingDeclaration struct {
	Name    string       `yaml:"name"`
	Default DefaultValue `yaml:"default"`
	Help    string       `yaml:"help,omitempty"`
	Kind    string       `yaml:"kind,omitempty"`
	Field   string       `yaml:"field,omitempty"`
}

// DefaultValue is a declared default. Unquoted YAML timestamps become
// civil.Date (2010-12-24) or civil.DateTime (2010-08-23 11:29:24); a
// quoted timestamp stays a string.
type DefaultValue struct {
	Value any
}

func (d *DefaultValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!timestamp" {
		return node.Decode(&d.Value)
	}
	if date, err := civil.ParseDate(node.Value); err == nil {
		d.Value = date
		return nil
	}
	var t time.Time
	if err := node.Decode(&t); err != nil {
		return err
	}
	d.Value = civil.DateTimeOf(t)
	return nil
}

// DerivedDeclaration declares a derived setting as either a constant
// Value or the name of a registered Computation.
type DerivedDeclaration struct {
	Name        string `yaml:"name"`
	Help        string `yaml:"help,omitempty"`
	Kind        string `yaml:"kind,omitempty"`
	Value       any    `yaml:"value,omitempty"`
	Computation string `yaml:"computation,omitempty"`
}

// ReadDeclarations loads declarations from filename. A filename of the
// form "env:VAR" reads the YAML document from the environment variable VAR.
func ReadDeclarations(filename string) (*Declarations, error) {
	if envVar, ok := strings.CutPrefix(filename, "env:"); ok {
		contents := os.Getenv(envVar)
		if contents == "" {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		return parseDeclarations(filename, []byte(contents))
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations from file %s: %w", filename, err)
	}
	return parseDeclarations(filename, contents)
}

// ParseDeclarations decodes a YAML declarations document.
func ParseDeclarations(contents []byte) (*Declarations, error) {
	return parseDeclarations("<inline>", contents)
}

func parseDeclarations(source string, contents []byte) (*Declarations, error) {
	var decls Declarations
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&decls); err != nil {
		return nil, fmt.Errorf("failed to unmarshal declarations from %s: %w", source, err)
	}
	return &decls, nil
}

// Apply registers every declaration. All problems are reported together;
// declarations that are valid are registered even when others fail.
func (r *Registry) Apply(decls *Declarations, computations *Computations) error {
	var errs *multierror.Error

	for name, fd := range decls.Fields {
		k, err := fieldkind.ParseKind(fd.Kind)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: field %s: %w", ErrInvalidDefinition, name, err))
			continue
		}
		spec := fieldkind.Spec{Kind: k, Choices: fd.Choices, Widget: fd.Widget}
		if err := r.AddField(name, spec); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("field %s: %w", name, err))
		}
	}

	for _, sd := range decls.Settings {
		opts := []DefinitionOption{WithHelp(sd.Help)}
		switch {
		case sd.Field != "":
			opts = append(opts, WithFieldName(sd.Field))
		case sd.Kind != "":
			opts = append(opts, WithFieldName(sd.Kind))
		}
		if err := r.Register(sd.Name, sd.Default.Value, opts...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for _, dd := range decls.Derived {
		c, err := derivedComputable(dd, computations)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, dd.Name, err))
			continue
		}
		opts := []DefinitionOption{WithHelp(dd.Help)}
		if dd.Kind != "" {
			opts = append(opts, WithFieldName(dd.Kind))
		}
		if err := r.RegisterDerived(dd.Name, c, opts...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func derivedComputable(dd DerivedDeclaration, computations *Computations) (Computable, error) {
	switch {
	case dd.Computation != "" && dd.Value != nil:
		return nil, fmt.Errorf("declares both a value and a computation")
	case dd.Computation != "":
		if computations == nil {
			return nil, fmt.Errorf("%w %q", errUnknownComputation, dd.Computation)
		}
		return computations.Lookup(dd.Computation)
	case dd.Value != nil:
		return Constant{Value: dd.Value}, nil
	}
	return nil, fmt.Errorf("declares neither a value nor a computation")
}
