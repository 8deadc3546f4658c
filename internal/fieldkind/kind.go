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

// Package fieldkind converts untyped setting input into validated, typed
// values. Each Kind has exactly one coercion rule and one canonical Go
// representation.
package fieldkind

import (
	"fmt"
	"strings"
)

// Kind is the validation and coercion rule family of a setting.
type Kind uint8

const (
	Invalid Kind = iota
	Integer
	Float
	Decimal
	Boolean
	String
	Text
	Email
	Date
	Time
	DateTime
	Timedelta
	Choice
	List
	JSON
)

var kindNames = map[Kind]string{
	Integer:   "integer",
	Float:     "float",
	Decimal:   "decimal",
	Boolean:   "boolean",
	String:    "string",
	Text:      "text",
	Email:     "email",
	Date:      "date",
	Time:      "time",
	DateTime:  "datetime",
	Timedelta: "timedelta",
	Choice:    "choice",
	List:      "list",
	JSON:      "json",
}

// kindAliases are additional spellings accepted by ParseKind.
var kindAliases = map[string]Kind{
	"int":       Integer,
	"bool":      Boolean,
	"str":       String,
	"multiline": Text,
	"duration":  Timedelta,
	"select":    Choice,
	"object":    JSON,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the Kind with the given name or alias (case insensitive).
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return k, nil
		}
	}
	if k, ok := kindAliases[n]; ok {
		return k, nil
	}
	return Invalid, fmt.Errorf("unknown field kind %q", name)
}

// ChoiceOption is one allowed token of a Choice field.
type ChoiceOption struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Spec is the full field rule for a setting: the kind plus optional
// overrides such as the allowed choices or a widget hint for editors.
type Spec struct {
	// Name is set when the spec was declared as a named additional field.
	Name    string
	Kind    Kind
	Choices []ChoiceOption
	Widget  string
}

// SpecFor returns the plain spec for a kind.
func SpecFor(k Kind) Spec {
	return Spec{Kind: k}
}

// ChoiceValues returns the allowed tokens in declaration order.
func (s Spec) ChoiceValues() []string {
	values := make([]string, len(s.Choices))
	for i, c := range s.Choices {
		values[i] = c.Value
	}
	return values
}

// Validate reports whether the spec is usable.
func (s Spec) Validate() error {
	if _, ok := kindNames[s.Kind]; !ok {
		return fmt.Errorf("invalid field kind %s", s.Kind)
	}
	if s.Kind == Choice && len(s.Choices) == 0 {
		return fmt.Errorf("choice field %q declares no choices", s.Name)
	}
	if s.Kind != Choice && len(s.Choices) > 0 {
		return fmt.Errorf("field %q of kind %s cannot declare choices", s.Name, s.Kind)
	}
	return nil
}
