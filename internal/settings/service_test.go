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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dynconf/internal/backend"
	"github.com/cardinalhq/dynconf/internal/fieldkind"
	"github.com/cardinalhq/dynconf/internal/registry"
)

// countingBackend records how often each operation reaches the store.
type countingBackend struct {
	*backend.Memory
	gets     atomic.Int32
	getManys atomic.Int32
	sets     atomic.Int32
	err      error
}

func newCountingBackend() *countingBackend {
	return &countingBackend{Memory: backend.NewMemory()}
}

func (b *countingBackend) Get(ctx context.Context, name string) (any, bool, error) {
	b.gets.Add(1)
	if b.err != nil {
		return nil, false, b.err
	}
	return b.Memory.Get(ctx, name)
}

func (b *countingBackend) GetMany(ctx context.Context, names []string) (map[string]any, error) {
	b.getManys.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return b.Memory.GetMany(ctx, names)
}

func (b *countingBackend) Set(ctx context.Context, name string, value any) error {
	b.sets.Add(1)
	if b.err != nil {
		return b.err
	}
	return b.Memory.Set(ctx, name, value)
}

func (b *countingBackend) reads() int32 {
	return b.gets.Load() + b.getManys.Load()
}

// greeter builds derived values from other settings, read through svc.
type greeter struct {
	svc *Service
}

func (g *greeter) greeting() (any, error) {
	values, err := g.svc.GetValuesForKeys(context.Background(), registry.Names{"STRING_VALUE", "EMAIL_VALUE"})
	if err != nil {
		return nil, err
	}
	greeting, _ := values.Get("STRING_VALUE")
	email, _ := values.Get("EMAIL_VALUE")
	return fmt.Sprintf("%s to %s", greeting, email), nil
}

func (g *greeter) greetingByName() (any, error) {
	ctx := context.Background()
	greeting, err := g.svc.Get(ctx, "STRING_VALUE")
	if err != nil {
		return nil, err
	}
	email, err := g.svc.Get(ctx, "EMAIL_VALUE")
	if err != nil {
		return nil, err
	}
	return greeting.(string) + " to " + email.(string), nil
}

// newFixtureService builds the full fixture registry over b. Its derived
// settings combine STRING_VALUE and EMAIL_VALUE: DERIVED_VALUE_FUNC and
// DERIVED_VALUE_FUNC_STR with one GetMany, DERIVED_VALUE_LAMBDA with two
// Gets.
func newFixtureService(t *testing.T, b backend.Backend) *Service {
	t.Helper()
	g := &greeter{}
	g.svc = New(newTestRegistry(t, g), b)
	return g.svc
}

func newTestRegistry(t *testing.T, g *greeter) *registry.Registry {
	t.Helper()
	r := registry.New(registry.WithDecimalPolicy(false))
	require.NoError(t, r.AddField("yes_no_null_select", fieldkind.Spec{
		Kind: fieldkind.Choice,
		Choices: []fieldkind.ChoiceOption{
			{Value: "", Label: "-----"},
			{Value: "yes", Label: "Yes"},
			{Value: "no", Label: "No"},
		},
	}))

	r.MustRegister("INT_VALUE", 1, registry.WithHelp("some int"))
	r.MustRegister("BOOL_VALUE", true, registry.WithHelp("true or false"))
	r.MustRegister("STRING_VALUE", "Hello world", registry.WithHelp("greetings"))
	r.MustRegister("DECIMAL_VALUE", decimal.RequireFromString("0.1"), registry.WithHelp("the first release version"))
	r.MustRegister("DATETIME_VALUE", civil.DateTime{
		Date: civil.Date{Year: 2010, Month: time.August, Day: 23},
		Time: civil.Time{Hour: 11, Minute: 29, Second: 24},
	}, registry.WithHelp("time of the first commit"))
	r.MustRegister("FLOAT_VALUE", 3.1415926536, registry.WithHelp("PI"))
	r.MustRegister("DATE_VALUE", civil.Date{Year: 2010, Month: time.December, Day: 24}, registry.WithHelp("Merry Chrismas"))
	r.MustRegister("TIME_VALUE", civil.Time{Hour: 23, Minute: 59, Second: 59}, registry.WithHelp("And happy New Year"))
	r.MustRegister("TIMEDELTA_VALUE", 24*time.Hour+2*time.Hour+3*time.Minute, registry.WithHelp("Interval"))
	r.MustRegister("CHOICE_VALUE", "yes", registry.WithHelp("select yes or no"), registry.WithFieldName("yes_no_null_select"))
	r.MustRegister("LINEBREAK_VALUE", "Spam spam", registry.WithKind(fieldkind.Text))
	r.MustRegister("EMAIL_VALUE", "test@example.com", registry.WithHelp("An email"), registry.WithFieldName("email"))
	r.MustRegister("LIST_VALUE", []any{1, "1", civil.Date{Year: 2019, Month: time.January, Day: 1}}, registry.WithHelp("A list"))
	r.MustRegister("JSON_VALUE", map[string]any{
		"key":  "value",
		"key2": 2,
		"key3": []any{1, 2, 3},
		"key4": map[string]any{"key": "value"},
		"key5": civil.Date{Year: 2019, Month: time.January, Day: 1},
		"key6": nil,
	}, registry.WithHelp("A JSON object"))

	computations := registry.NewComputations()
	computations.Add("greeting", g.greeting)
	named, err := computations.Lookup("greeting")
	require.NoError(t, err)

	require.NoError(t, r.RegisterDerived("DERIVED_VALUE_FUNC", registry.Func(g.greeting)))
	require.NoError(t, r.RegisterDerived("DERIVED_VALUE_FUNC_STR", named))
	require.NoError(t, r.RegisterDerived("DERIVED_VALUE_LAMBDA", registry.Func(func() (any, error) {
		return g.greetingByName()
	})))
	return r
}

func expectedDefaults() map[string]any {
	return map[string]any{
		"FLOAT_VALUE":     3.1415926536,
		"BOOL_VALUE":      true,
		"EMAIL_VALUE":     "test@example.com",
		"INT_VALUE":       int64(1),
		"CHOICE_VALUE":    "yes",
		"TIME_VALUE":      civil.Time{Hour: 23, Minute: 59, Second: 59},
		"DATE_VALUE":      civil.Date{Year: 2010, Month: time.December, Day: 24},
		"TIMEDELTA_VALUE": 26*time.Hour + 3*time.Minute,
		"LINEBREAK_VALUE": "Spam spam",
		"STRING_VALUE":    "Hello world",
		"DATETIME_VALUE": civil.DateTime{
			Date: civil.Date{Year: 2010, Month: time.August, Day: 23},
			Time: civil.Time{Hour: 11, Minute: 29, Second: 24},
		},
		"LIST_VALUE": []any{int64(1), "1", civil.Date{Year: 2019, Month: time.January, Day: 1}},
		"JSON_VALUE": map[string]any{
			"key":  "value",
			"key2": int64(2),
			"key3": []any{int64(1), int64(2), int64(3)},
			"key4": map[string]any{"key": "value"},
			"key5": civil.Date{Year: 2019, Month: time.January, Day: 1},
			"key6": nil,
		},
		"DERIVED_VALUE_FUNC":     "Hello world to test@example.com",
		"DERIVED_VALUE_FUNC_STR": "Hello world to test@example.com",
		"DERIVED_VALUE_LAMBDA":   "Hello world to test@example.com",
	}
}

func newTestService(t *testing.T) (*Service, *countingBackend) {
	t.Helper()
	b := newCountingBackend()
	return newFixtureService(t, b), b
}

func TestGetValues(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValues(context.Background())
	require.NoError(t, err)

	got := values.Map()
	want := expectedDefaults()
	dec, ok := got["DECIMAL_VALUE"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.1").Equal(dec))
	delete(got, "DECIMAL_VALUE")
	assert.Equal(t, want, got)

	// one GetMany for the stored settings, the rest from derived settings
	assert.Equal(t, int32(2), b.gets.Load())
	assert.Equal(t, int32(3), b.getManys.Load())
}

func TestGetValuesOrderAndKinds(t *testing.T) {
	svc, _ := newTestService(t)
	values, err := svc.GetValues(context.Background())
	require.NoError(t, err)

	var names []string
	for name := range svc.Registry().AllNames() {
		names = append(names, name)
	}
	assert.Equal(t, names, values.Names())

	for name, v := range values.All() {
		def, err := svc.Registry().Lookup(name)
		require.NoError(t, err)
		if def.IsDerived() {
			continue
		}
		assert.True(t, fieldkind.Matches(def.Kind(), v), "%s has %T", name, v)
	}
}

func TestGetValuesPrefersStored(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)
	require.NoError(t, b.Memory.Set(ctx, "INT_VALUE", int64(42)))
	require.NoError(t, b.Memory.Set(ctx, "DATE_VALUE", "2020-02-29"))

	values, err := svc.GetValues(ctx)
	require.NoError(t, err)
	v, _ := values.Get("INT_VALUE")
	assert.Equal(t, int64(42), v)
	v, _ = values.Get("DATE_VALUE")
	assert.Equal(t, civil.Date{Year: 2020, Month: time.February, Day: 29}, v)
}

func TestStoredValueOfWrongKindFallsBack(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)
	require.NoError(t, b.Memory.Set(ctx, "INT_VALUE", "not a number"))
	require.NoError(t, b.Memory.Set(ctx, "BOOL_VALUE", nil))

	values, err := svc.GetValuesForKeys(ctx, registry.Names{"INT_VALUE", "BOOL_VALUE"})
	require.NoError(t, err)
	v, _ := values.Get("INT_VALUE")
	assert.Equal(t, int64(1), v)
	v, _ = values.Get("BOOL_VALUE")
	assert.Equal(t, true, v)
}

func TestGetValuesForKeys(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValuesForKeys(context.Background(), registry.Names{"BOOL_VALUE", "CHOICE_VALUE", "LINEBREAK_VALUE"})
	require.NoError(t, err)

	assert.Equal(t, []string{"BOOL_VALUE", "CHOICE_VALUE", "LINEBREAK_VALUE"}, values.Names())
	assert.Equal(t, map[string]any{
		"BOOL_VALUE":      true,
		"CHOICE_VALUE":    "yes",
		"LINEBREAK_VALUE": "Spam spam",
	}, values.Map())
	assert.Equal(t, int32(1), b.getManys.Load())
	assert.Equal(t, int32(0), b.gets.Load())
}

func TestGetValuesForKeysSingleStoredName(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValuesForKeys(context.Background(), registry.Names{"STRING_VALUE", "DERIVED_VALUE_FUNC"})
	require.NoError(t, err)
	assert.Equal(t, 2, values.Len())
	assert.Equal(t, int32(1), b.gets.Load())
	// DERIVED_VALUE_FUNC's own read
	assert.Equal(t, int32(1), b.getManys.Load())
}

func TestGetValuesForKeysDerivedOnly(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValuesForKeys(context.Background(), registry.Names{"DERIVED_VALUE_LAMBDA"})
	require.NoError(t, err)
	v, ok := values.Get("DERIVED_VALUE_LAMBDA")
	assert.True(t, ok)
	assert.Equal(t, "Hello world to test@example.com", v)
	// only the computation's own reads
	assert.Equal(t, int32(2), b.gets.Load())
	assert.Equal(t, int32(0), b.getManys.Load())
}

func TestDerivedFollowsStoredValues(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetValue(ctx, "STRING_VALUE", fieldkind.Raw("Goodbye world")))
	require.NoError(t, svc.SetValue(ctx, "EMAIL_VALUE", fieldkind.Raw("other@example.com")))

	values, err := svc.GetValuesForKeys(ctx, registry.Names{"DERIVED_VALUE_FUNC", "DERIVED_VALUE_FUNC_STR", "DERIVED_VALUE_LAMBDA"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"DERIVED_VALUE_FUNC":     "Goodbye world to other@example.com",
		"DERIVED_VALUE_FUNC_STR": "Goodbye world to other@example.com",
		"DERIVED_VALUE_LAMBDA":   "Goodbye world to other@example.com",
	}, values.Map())
}

func TestGetValuesForKeysEmpty(t *testing.T) {
	svc, b := newTestService(t)
	for _, names := range []registry.Names{nil, {}} {
		values, err := svc.GetValuesForKeys(context.Background(), names)
		require.NoError(t, err)
		assert.Equal(t, 0, values.Len())
		assert.Empty(t, values.Map())
	}
	assert.Equal(t, int32(0), b.reads())
}

func TestGetValuesForKeysMissing(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValuesForKeys(context.Background(), registry.Names{"BOOL_VALUE", "OLD_VALUE", "BOLD_VALUE"})
	assert.Nil(t, values)
	require.Error(t, err)
	assert.EqualError(t, err, "OLD_VALUE, BOLD_VALUE keys not found in configuration.")
	assert.ErrorIs(t, err, registry.ErrConfiguration)

	var verr *fieldkind.ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Equal(t, int32(0), b.reads())
}

func TestGetValuesForKeysDuplicates(t *testing.T) {
	svc, b := newTestService(t)
	values, err := svc.GetValuesForKeys(context.Background(), registry.Names{"INT_VALUE", "INT_VALUE", "BOOL_VALUE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"INT_VALUE", "BOOL_VALUE"}, values.Names())
	assert.Equal(t, int32(1), b.getManys.Load())
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)

	v, err := svc.Get(ctx, "TIMEDELTA_VALUE")
	require.NoError(t, err)
	assert.Equal(t, 26*time.Hour+3*time.Minute, v)
	assert.Equal(t, int32(1), b.gets.Load())

	_, err = svc.Get(ctx, "OLD_VALUE")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestBackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)
	b.err = errors.New("connection reset")

	_, err := svc.GetValues(ctx)
	assert.ErrorIs(t, err, b.err)
	_, err = svc.GetValuesForKeys(ctx, registry.Names{"INT_VALUE"})
	assert.ErrorIs(t, err, b.err)
	assert.ErrorIs(t, svc.SetValue(ctx, "INT_VALUE", fieldkind.Raw("5")), b.err)
}

func TestDerivedErrorsPropagate(t *testing.T) {
	r := registry.New()
	boom := errors.New("boom")
	require.NoError(t, r.RegisterDerived("BROKEN", registry.Func(func() (any, error) { return nil, boom })))
	svc := New(r, newCountingBackend())

	_, err := svc.GetValues(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDerivedEvaluatedEachRead(t *testing.T) {
	r := registry.New()
	var calls atomic.Int32
	require.NoError(t, r.RegisterDerived("COUNTER", registry.Func(func() (any, error) {
		return calls.Add(1), nil
	})))
	svc := New(r, newCountingBackend())

	for want := int32(1); want <= 3; want++ {
		v, err := svc.Get(context.Background(), "COUNTER")
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestSetValueValidation(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		input   fieldkind.Input
		message string
	}{
		{"integer", "INT_VALUE", fieldkind.Raw("foo"), "Enter a whole number."},
		{"email", "EMAIL_VALUE", fieldkind.Raw("not a valid email"), "Enter a valid email address."},
		{"datetime date first", "DATETIME_VALUE", fieldkind.Raw("2000-00-00", "99:99:99"), "Enter a valid date."},
		{"datetime time", "DATETIME_VALUE", fieldkind.Raw("2016-01-01", "99:99:99"), "Enter a valid time."},
		{"choice", "CHOICE_VALUE", fieldkind.Raw("maybe"), "Select a valid choice. maybe is not one of the available choices."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, b := newTestService(t)
			err := svc.SetValue(context.Background(), tt.setting, tt.input)

			var verr *fieldkind.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message)
			assert.NotErrorIs(t, err, registry.ErrConfiguration)
			assert.Equal(t, int32(0), b.sets.Load())
		})
	}
}

func TestSetValue(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		setting string
		input   fieldkind.Input
		want    any
	}{
		{"INT_VALUE", fieldkind.Raw("42"), int64(42)},
		{"BOOL_VALUE", fieldkind.Raw("off"), false},
		{"FLOAT_VALUE", fieldkind.Raw("2.5"), 2.5},
		{"DATE_VALUE", fieldkind.Raw("2021-06-01"), civil.Date{Year: 2021, Month: time.June, Day: 1}},
		{"DATETIME_VALUE", fieldkind.Raw("2016-01-01", "10:00:00"), civil.DateTime{
			Date: civil.Date{Year: 2016, Month: time.January, Day: 1},
			Time: civil.Time{Hour: 10},
		}},
		{"TIMEDELTA_VALUE", fieldkind.Raw("2 days, 01:00:00"), 49 * time.Hour},
		{"CHOICE_VALUE", fieldkind.Raw("no"), "no"},
		{"LIST_VALUE", fieldkind.Raw(`[1, "two", {"__type__": "date", "__value__": "2019-01-01"}]`),
			[]any{int64(1), "two", civil.Date{Year: 2019, Month: time.January, Day: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			svc, b := newTestService(t)
			require.NoError(t, svc.SetValue(ctx, tt.setting, tt.input))
			assert.Equal(t, int32(1), b.sets.Load())

			stored, found, err := b.Memory.Get(ctx, tt.setting)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tt.want, stored)

			v, err := svc.Get(ctx, tt.setting)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestSetValueConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)

	err := svc.SetValue(ctx, "OLD_VALUE", fieldkind.Raw("1"))
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, err, registry.ErrConfiguration)

	err = svc.SetValue(ctx, "DERIVED_VALUE_FUNC", fieldkind.Raw("x"))
	assert.ErrorIs(t, err, registry.ErrDerivedNotAssignable)
	assert.ErrorIs(t, err, registry.ErrConfiguration)

	assert.Equal(t, int32(0), b.sets.Load())
}

func TestSetValueThroughCache(t *testing.T) {
	ctx := context.Background()
	inner := newCountingBackend()
	cached := backend.NewCached(inner, time.Minute)
	t.Cleanup(cached.Close)
	svc := newFixtureService(t, cached)

	v, err := svc.Get(ctx, "STRING_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", v)

	require.NoError(t, svc.SetValue(ctx, "STRING_VALUE", fieldkind.Raw("  Goodbye\nworld ")))
	v, err = svc.Get(ctx, "STRING_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "Goodbye world", v)
	assert.Equal(t, int32(2), inner.gets.Load())
	assert.Equal(t, int32(1), inner.sets.Load())
}

func TestRemoveStale(t *testing.T) {
	ctx := context.Background()
	svc, b := newTestService(t)
	require.NoError(t, b.Memory.Set(ctx, "INT_VALUE", int64(3)))
	require.NoError(t, b.Memory.Set(ctx, "OLD_VALUE", "x"))
	require.NoError(t, b.Memory.Set(ctx, "BOLD_VALUE", "y"))

	stale, err := svc.StaleKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BOLD_VALUE", "OLD_VALUE"}, stale)

	removed, err := svc.RemoveStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BOLD_VALUE", "OLD_VALUE"}, removed)

	keys, err := b.Memory.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"INT_VALUE"}, keys)

	removed, err = svc.RemoveStale(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

type getOnly struct{ backend.Backend }

func TestRemoveStaleUnsupported(t *testing.T) {
	svc := newFixtureService(t, getOnly{backend.NewMemory()})
	_, err := svc.StaleKeys(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestValuesIteration(t *testing.T) {
	v := newValues(2)
	v.add("A", 1)
	v.add("B", 2)
	v.add("A", 3)

	assert.Equal(t, []string{"A", "B"}, v.Names())
	var seen []string
	for name := range v.All() {
		seen = append(seen, name)
		break
	}
	assert.Equal(t, []string{"A"}, seen)
	got, ok := v.Get("A")
	assert.True(t, ok)
	assert.Equal(t, 3, got)

	names := v.Names()
	names[0] = "Z"
	assert.Equal(t, []string{"A", "B"}, v.Names())
}
