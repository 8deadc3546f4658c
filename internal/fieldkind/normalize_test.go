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
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	c := Default()
	moment := time.Date(2010, time.August, 23, 11, 29, 24, 0, time.UTC)
	tests := []struct {
		name string
		spec Spec
		in   any
		want any
	}{
		{"int to int64", SpecFor(Integer), 1, int64(1)},
		{"integral float to int64", SpecFor(Integer), 2.0, int64(2)},
		{"json number to int64", SpecFor(Integer), json.Number("5"), int64(5)},
		{"int to float", SpecFor(Float), 3, 3.0},
		{"decimal to float", SpecFor(Float), decimal.RequireFromString("0.5"), 0.5},
		{"string to int", SpecFor(Integer), "12", int64(12)},
		{"bool", SpecFor(Boolean), true, true},
		{"number to string", SpecFor(String), 12, "12"},
		{"time to date", SpecFor(Date), moment, civil.Date{Year: 2010, Month: time.August, Day: 23}},
		{"string to date", SpecFor(Date), "2010-12-24", civil.Date{Year: 2010, Month: time.December, Day: 24}},
		{"time to time", SpecFor(Time), moment, civil.Time{Hour: 11, Minute: 29, Second: 24}},
		{"time to datetime", SpecFor(DateTime), moment, civil.DateTimeOf(moment)},
		{"string to datetime", SpecFor(DateTime), "2010-08-23 11:29:24", civil.DateTimeOf(moment)},
		{"seconds to timedelta", SpecFor(Timedelta), 90, 90 * time.Second},
		{"string slice to list", SpecFor(List), []string{"a", "b"}, []any{"a", "b"}},
		{"int slice to list", SpecFor(List), []any{1, 2.5}, []any{int64(1), 2.5}},
		{"json string stays", SpecFor(JSON), "plain", "plain"},
		{"json nil", SpecFor(JSON), nil, nil},
		{"json nested ints", SpecFor(JSON), map[string]any{"a": []int{1}}, map[string]any{"a": []any{int64(1)}}},
		{"choice", yesNoNull, "yes", "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Normalize(tt.spec, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDecimal(t *testing.T) {
	c := Default()
	for _, in := range []any{0.1, "0.1", json.Number("0.1"), decimal.RequireFromString("0.1")} {
		got, err := c.Normalize(SpecFor(Decimal), in)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("0.1").Equal(got.(decimal.Decimal)), "input %v", in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	c := Default()
	tests := []struct {
		name string
		spec Spec
		in   any
	}{
		{"fractional int", SpecFor(Integer), 1.5},
		{"bool as float", SpecFor(Float), true},
		{"int as bool", SpecFor(Boolean), 1},
		{"list as string", SpecFor(String), []any{"a"}},
		{"bad email default", SpecFor(Email), "nobody"},
		{"unknown choice", yesNoNull, "maybe"},
		{"map as list", SpecFor(List), map[string]any{}},
		{"nested list", SpecFor(List), []any{[]any{1}}},
		{"nil date", SpecFor(Date), nil},
		{"non-string keys", SpecFor(JSON), map[int]any{1: "a"}},
		{"seconds past duration range", SpecFor(Timedelta), 1e20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Normalize(tt.spec, tt.in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		in            any
		preferDecimal bool
		want          Kind
	}{
		{true, false, Boolean},
		{1, false, Integer},
		{int64(1), false, Integer},
		{3.14, false, Float},
		{3.14, true, Decimal},
		{decimal.RequireFromString("0.1"), false, Decimal},
		{civil.Date{Year: 2019, Month: 1, Day: 1}, false, Date},
		{civil.Time{Hour: 1}, false, Time},
		{civil.DateTime{}, false, DateTime},
		{time.Now(), false, DateTime},
		{time.Minute, false, Timedelta},
		{"text", false, String},
		{[]any{1}, false, List},
		{[]string{"a"}, false, List},
		{map[string]any{}, false, JSON},
	}
	for _, tt := range tests {
		got, ok := Infer(tt.in, tt.preferDecimal)
		assert.True(t, ok, "%T", tt.in)
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}

	_, ok := Infer(nil, false)
	assert.False(t, ok)
	_, ok = Infer(struct{}{}, false)
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(Integer, int64(1)))
	assert.False(t, Matches(Integer, 1))
	assert.True(t, Matches(Float, 1.0))
	assert.True(t, Matches(Choice, "yes"))
	assert.True(t, Matches(Timedelta, time.Second))
	assert.True(t, Matches(List, []any{int64(1)}))
	assert.True(t, Matches(JSON, map[string]any{"a": []any{int64(1), nil}}))
	assert.True(t, Matches(JSON, nil))
	assert.False(t, Matches(JSON, map[string]any{"a": 1}))
	assert.False(t, Matches(Invalid, "x"))
}
