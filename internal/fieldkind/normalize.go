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
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/cardinalhq/dynconf/internal/codec"
)

// Normalize converts an already typed Go value, such as a declared default
// or a value decoded from storage, into the canonical representation for
// spec. Text values go through the same rules as Coerce.
func (c *Coercer) Normalize(spec Spec, v any) (any, error) {
	if s, ok := v.(string); ok && spec.Kind != JSON {
		return c.Coerce(spec, Raw(s))
	}

	switch spec.Kind {
	case Integer:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case Float:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.InexactFloat64(), nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			if f, err := cast.ToFloat64E(n); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				return f, nil
			}
		}
	case Decimal:
		if d, ok := toDecimal(v); ok {
			return d, nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case String, Text, Email, Choice:
		switch v.(type) {
		case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			s, err := cast.ToStringE(v)
			if err == nil {
				return c.Coerce(spec, Raw(s))
			}
		}
	case Date:
		switch t := v.(type) {
		case civil.Date:
			if t.IsValid() {
				return t, nil
			}
		case time.Time:
			return civil.DateOf(t), nil
		}
	case Time:
		switch t := v.(type) {
		case civil.Time:
			if t.IsValid() {
				return t, nil
			}
		case time.Time:
			return civil.TimeOf(t), nil
		}
	case DateTime:
		switch t := v.(type) {
		case civil.DateTime:
			if t.IsValid() {
				return t, nil
			}
		case time.Time:
			return civil.DateTimeOf(t), nil
		}
	case Timedelta:
		switch t := v.(type) {
		case time.Duration:
			return t, nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			// bare numbers are seconds
			if f, err := cast.ToFloat64E(t); err == nil {
				if d, ok := floatDuration(f, time.Second); ok {
					return d, nil
				}
			}
		}
	case List:
		if list, ok := normalizeList(v); ok {
			return list, nil
		}
	case JSON:
		if out, ok := normalizeJSON(v); ok {
			return out, nil
		}
	default:
		return nil, fmt.Errorf("fieldkind: unsupported kind %s", spec.Kind)
	}
	return nil, invalid(spec.Kind)
}

// Infer picks the kind for a Go value. Real numbers map to Decimal when
// preferDecimal is set, Float otherwise.
func Infer(v any, preferDecimal bool) (Kind, bool) {
	switch v.(type) {
	case bool:
		return Boolean, true
	case time.Duration:
		return Timedelta, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer, true
	case float32, float64:
		if preferDecimal {
			return Decimal, true
		}
		return Float, true
	case decimal.Decimal:
		return Decimal, true
	case civil.Date:
		return Date, true
	case civil.Time:
		return Time, true
	case civil.DateTime, time.Time:
		return DateTime, true
	case string:
		return String, true
	case nil:
		return Invalid, false
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return List, true
	case reflect.Map:
		return JSON, true
	}
	return Invalid, false
}

// Matches reports whether v has the canonical Go type for k.
func Matches(k Kind, v any) bool {
	switch k {
	case Integer:
		_, ok := v.(int64)
		return ok
	case Float:
		_, ok := v.(float64)
		return ok
	case Decimal:
		_, ok := v.(decimal.Decimal)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case String, Text, Email, Choice:
		_, ok := v.(string)
		return ok
	case Date:
		_, ok := v.(civil.Date)
		return ok
	case Time:
		_, ok := v.(civil.Time)
		return ok
	case DateTime:
		_, ok := v.(civil.DateTime)
		return ok
	case Timedelta:
		_, ok := v.(time.Duration)
		return ok
	case List:
		_, ok := v.([]any)
		return ok
	case JSON:
		out, ok := normalizeJSON(v)
		return ok && reflect.DeepEqual(out, v)
	}
	return false
}

// Format renders a canonical value as text that Coerce accepts for the
// value's kind.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case decimal.Decimal:
		return t.String()
	case civil.Date:
		return t.String()
	case civil.Time:
		return t.String()
	case civil.DateTime:
		return t.Date.String() + " " + t.Time.String()
	case time.Duration:
		return FormatDuration(t)
	}
	if b, err := codec.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return toInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case decimal.Decimal:
		if !n.IsInteger() {
			return 0, false
		}
		return n.IntPart(), true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Decimal{}, false
		}
		return *n, true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	if i, ok := toInt64(v); ok {
		return decimal.NewFromInt(i), true
	}
	return decimal.Decimal{}, false
}

// normalizeScalar maps the scalar types allowed inside list and json
// values onto their canonical form.
func normalizeScalar(v any) (any, bool) {
	switch t := v.(type) {
	case nil, bool, string, int64, float64, decimal.Decimal, civil.Date, civil.Time, civil.DateTime, time.Duration:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		return f, err == nil
	case time.Time:
		return civil.DateTimeOf(t), true
	}
	if i, ok := toInt64(v); ok {
		return i, true
	}
	return nil, false
}

func normalizeList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is text, not a list
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		item, ok := normalizeScalar(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = item
	}
	return out, true
}

func normalizeJSON(v any) (any, bool) {
	if s, ok := normalizeScalar(v); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				return nil, false
			}
			val, ok := normalizeJSON(iter.Value().Interface())
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			val, ok := normalizeJSON(rv.Index(i).Interface())
			if !ok {
				return nil, false
			}
			out[i] = val
		}
		return out, true
	}
	return nil, false
}
