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

package fieldkind

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/shopspring/decimal"

	"github.com/cardinalhq/dynconf/internal/codec"
)

// Formats holds the layouts accepted when parsing date and time text.
// Layouts use the reference time of the time package.
type Formats struct {
	Date []string `mapstructure:"date"`
	Time []string `mapstructure:"time"`
}

// DefaultFormats returns ISO dates plus US style month/day/year, and
// 24 hour clock times with or without seconds.
func DefaultFormats() Formats {
	return Formats{
		Date: []string{"2006-01-02", "01/02/2006", "01/02/06"},
		Time: []string{"15:04:05", "15:04"},
	}
}

// Input is untyped setting input: usually one text part, or a date part
// and a time part for DateTime fields.
type Input []string

// Raw wraps one or more text parts as an Input.
func Raw(parts ...string) Input {
	return Input(parts)
}

func (in Input) joined() string {
	return strings.Join(in, " ")
}

// Coercer applies field rules using a fixed set of date/time formats.
// A Coercer is immutable and safe for concurrent use.
type Coercer struct {
	formats Formats
}

// NewCoercer returns a Coercer. Empty format lists fall back to
// DefaultFormats.
func NewCoercer(formats Formats) *Coercer {
	def := DefaultFormats()
	if len(formats.Date) == 0 {
		formats.Date = def.Date
	}
	if len(formats.Time) == 0 {
		formats.Time = def.Time
	}
	return &Coercer{formats: formats}
}

var defaultCoercer = NewCoercer(DefaultFormats())

// Default returns a Coercer using DefaultFormats.
func Default() *Coercer {
	return defaultCoercer
}

// Formats returns the layouts in use.
func (c *Coercer) Formats() Formats {
	return c.formats
}

// Coerce converts raw input into the canonical value for spec. Rejected
// input always yields a *ValidationError.
func (c *Coercer) Coerce(spec Spec, in Input) (any, error) {
	if len(in) == 0 {
		return nil, required(spec.Kind)
	}
	if spec.Kind == DateTime {
		return c.coerceDateTime(in)
	}

	text := in.joined()
	switch spec.Kind {
	case Integer:
		return parseInteger(text)
	case Float:
		return parseFloat(text)
	case Decimal:
		return parseDecimal(text)
	case Boolean:
		return parseBoolean(text)
	case String:
		return cleanText(text, false)
	case Text:
		return cleanText(text, true)
	case Email:
		s := strings.TrimSpace(text)
		if s == "" {
			return nil, required(Email)
		}
		if !validEmail(s) {
			return nil, invalid(Email)
		}
		return s, nil
	case Date:
		s := strings.TrimSpace(text)
		if s == "" {
			return nil, required(Date)
		}
		d, ok := c.parseDate(s)
		if !ok {
			return nil, invalid(Date)
		}
		return d, nil
	case Time:
		s := strings.TrimSpace(text)
		if s == "" {
			return nil, required(Time)
		}
		t, ok := c.parseTime(s)
		if !ok {
			return nil, invalid(Time)
		}
		return t, nil
	case Timedelta:
		return parseDuration(text)
	case Choice:
		return coerceChoice(spec, text)
	case List:
		return parseList(text)
	case JSON:
		return parseJSON(text)
	}
	return nil, fmt.Errorf("fieldkind: unsupported kind %s", spec.Kind)
}

// coerceDateTime validates the date half before the time half so the
// reported message names the first failing part.
func (c *Coercer) coerceDateTime(in Input) (any, error) {
	var datePart, timePart string
	if len(in) == 2 {
		datePart, timePart = strings.TrimSpace(in[0]), strings.TrimSpace(in[1])
	} else {
		s := strings.TrimSpace(in.joined())
		if s == "" {
			return nil, required(DateTime)
		}
		i := strings.IndexAny(s, "T ")
		if i < 0 {
			return nil, invalid(DateTime)
		}
		datePart, timePart = s[:i], strings.TrimSpace(s[i+1:])
	}
	if datePart == "" && timePart == "" {
		return nil, required(DateTime)
	}

	d, ok := c.parseDate(datePart)
	if !ok {
		return nil, invalidDatePart()
	}
	t, ok := c.parseTime(timePart)
	if !ok {
		return nil, invalidTimePart()
	}
	return civil.DateTime{Date: d, Time: t}, nil
}

func (c *Coercer) parseDate(s string) (civil.Date, bool) {
	for _, layout := range c.formats.Date {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func (c *Coercer) parseTime(s string) (civil.Time, bool) {
	for _, layout := range c.formats.Time {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), true
		}
	}
	return civil.Time{}, false
}

var trailingZeroDecimal = regexp.MustCompile(`\.0*\s*$`)

func parseInteger(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(Integer)
	}
	s = trailingZeroDecimal.ReplaceAllString(s, "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, invalid(Integer)
	}
	return n, nil
}

func parseFloat(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(Float)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, invalid(Float)
	}
	return f, nil
}

func parseDecimal(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(Decimal)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, invalid(Decimal)
	}
	return d, nil
}

func parseBoolean(text string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "1", "yes", "on", "y", "t":
		return true, nil
	case "false", "0", "no", "off", "n", "f":
		return false, nil
	case "":
		return nil, required(Boolean)
	}
	return nil, invalid(Boolean)
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func cleanText(text string, multiline bool) (any, error) {
	kind := String
	if multiline {
		kind = Text
	}
	if !utf8.ValidString(text) {
		return nil, invalid(kind)
	}
	text = lineBreaks.Replace(text)
	if !multiline {
		text = strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	}
	return strings.TrimSpace(text), nil
}

func coerceChoice(spec Spec, text string) (any, error) {
	s := strings.TrimSpace(text)
	allowed := mapset.NewThreadUnsafeSet(spec.ChoiceValues()...)
	if !allowed.Contains(s) {
		if s == "" {
			return nil, required(Choice)
		}
		return nil, invalidChoice(s)
	}
	return s, nil
}

func parseList(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(List)
	}
	v, err := codec.Unmarshal([]byte(s))
	if err != nil {
		return nil, invalid(List)
	}
	list, ok := normalizeList(v)
	if !ok {
		return nil, invalid(List)
	}
	return list, nil
}

func parseJSON(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(JSON)
	}
	v, err := codec.Unmarshal([]byte(s))
	if err != nil {
		return nil, invalid(JSON)
	}
	return v, nil
}
