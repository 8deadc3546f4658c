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

// Package codec defines the persisted encoding of setting values.
//
// Values are JSON. Types JSON cannot express are wrapped as
//
//	{"__type__": "date", "__value__": "2019-01-01"}
//
// with the tags date, time, datetime, timedelta (total seconds) and
// decimal (string). Tags may appear at any depth inside lists and maps.
//
// Floats are always written with a fraction or exponent and integers never
// are, so int64 and float64 survive a round trip even inside nested
// structures.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	typeKey  = "__type__"
	valueKey = "__value__"

	tagDate      = "date"
	tagTime      = "time"
	tagDateTime  = "datetime"
	tagTimedelta = "timedelta"
	tagDecimal   = "decimal"
)

// ErrUnsupportedType is returned by Marshal for values with no encoding.
var ErrUnsupportedType = errors.New("codec: unsupported value type")

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	tree, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Unmarshal decodes data produced by Marshal, or any plain JSON document.
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("codec: trailing data after value")
	}
	return decodeValue(raw)
}

func tagged(tag string, value any) map[string]any {
	return map[string]any{typeKey: tag, valueKey: value}
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, json.Number:
		return t, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t, nil
	case float32:
		return encodeFloat(float64(t))
	case float64:
		return encodeFloat(t)
	case decimal.Decimal:
		return tagged(tagDecimal, t.String()), nil
	case civil.Date:
		return tagged(tagDate, t.String()), nil
	case civil.Time:
		return tagged(tagTime, t.String()), nil
	case civil.DateTime:
		return tagged(tagDateTime, t.String()), nil
	case time.Time:
		return tagged(tagDateTime, civil.DateTimeOf(t).String()), nil
	case time.Duration:
		return tagged(tagTimedelta, json.Number(decimal.New(int64(t), -9).String())), nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encodeValue(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeValue(m)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func encodeFloat(f float64) (any, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedType, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

func decodeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return decodeNumber(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			dec, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case map[string]any:
		if tag, ok := t[typeKey].(string); ok && len(t) == 2 {
			if inner, ok := t[valueKey]; ok {
				return decodeTagged(tag, inner)
			}
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			dec, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil
	}
	return v, nil
}

func decodeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return n.Float64()
}

func decodeTagged(tag string, inner any) (any, error) {
	if tag == tagTimedelta {
		n, ok := inner.(json.Number)
		if !ok {
			return nil, fmt.Errorf("codec: %s value must be a number", tag)
		}
		seconds, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("codec: bad %s value: %w", tag, err)
		}
		return time.Duration(seconds.Shift(9).Round(0).IntPart()), nil
	}

	s, ok := inner.(string)
	if !ok {
		return nil, fmt.Errorf("codec: %s value must be a string", tag)
	}
	switch tag {
	case tagDate:
		return civil.ParseDate(s)
	case tagTime:
		return civil.ParseTime(s)
	case tagDateTime:
		return civil.ParseDateTime(s)
	case tagDecimal:
		return decimal.NewFromString(s)
	}
	return nil, fmt.Errorf("codec: unknown type tag %q", tag)
}
