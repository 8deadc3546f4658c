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

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dynconf/configdb"
)

// mockQuerier is a test mock for SettingsQuerier.
type mockQuerier struct {
	rows         map[string]json.RawMessage
	getCallCount atomic.Int32
	setCallCount atomic.Int32
	getErr       error
	setErr       error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{rows: map[string]json.RawMessage{}}
}

func (m *mockQuerier) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	m.getCallCount.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.rows[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return v, nil
}

func (m *mockQuerier) GetSettings(ctx context.Context, keys []string) ([]configdb.GetSettingsRow, error) {
	m.getCallCount.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	var rows []configdb.GetSettingsRow
	for _, k := range keys {
		if v, ok := m.rows[k]; ok {
			rows = append(rows, configdb.GetSettingsRow{Key: k, Value: v})
		}
	}
	return rows, nil
}

func (m *mockQuerier) UpsertSetting(ctx context.Context, arg configdb.UpsertSettingParams) error {
	m.setCallCount.Add(1)
	if m.setErr != nil {
		return m.setErr
	}
	m.rows[arg.Key] = arg.Value
	return nil
}

func (m *mockQuerier) ListSettings(ctx context.Context) ([]configdb.DynconfSetting, error) {
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows := make([]configdb.DynconfSetting, len(keys))
	for i, k := range keys {
		rows[i] = configdb.DynconfSetting{Key: k, Value: m.rows[k], UpdatedAt: time.Now()}
	}
	return rows, nil
}

func (m *mockQuerier) DeleteSetting(ctx context.Context, key string) (int64, error) {
	if _, ok := m.rows[key]; !ok {
		return 0, nil
	}
	delete(m.rows, key)
	return 1, nil
}

func TestDatabase_RoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newMockQuerier()
	db := NewDatabase(q)

	values := map[string]any{
		"INT":       int64(1),
		"FLOAT":     3.0,
		"DECIMAL":   decimal.RequireFromString("0.1"),
		"DATE":      civil.Date{Year: 2010, Month: 12, Day: 24},
		"TIMEDELTA": 26*time.Hour + 3*time.Minute,
		"LIST":      []any{int64(1), "1", civil.Date{Year: 2019, Month: 1, Day: 1}},
	}
	for name, v := range values {
		require.NoError(t, db.Set(ctx, name, v))
	}
	assert.Equal(t, int32(len(values)), q.setCallCount.Load())
	assert.JSONEq(t, `3.0`, string(q.rows["FLOAT"]))

	for name, want := range values {
		got, found, err := db.Get(ctx, name)
		require.NoError(t, err)
		require.True(t, found, name)
		if d, ok := want.(decimal.Decimal); ok {
			assert.True(t, d.Equal(got.(decimal.Decimal)))
			continue
		}
		assert.Equal(t, want, got, name)
	}

	got, err := db.GetMany(ctx, []string{"INT", "DATE", "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"INT":  int64(1),
		"DATE": civil.Date{Year: 2010, Month: 12, Day: 24},
	}, got)
}

func TestDatabase_Absent(t *testing.T) {
	db := NewDatabase(newMockQuerier())
	v, found, err := db.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)

	many, err := db.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, many)
}

func TestDatabase_Errors(t *testing.T) {
	ctx := context.Background()
	q := newMockQuerier()
	db := NewDatabase(q)

	q.getErr = errors.New("connection refused")
	_, _, err := db.Get(ctx, "A")
	assert.ErrorIs(t, err, q.getErr)
	_, err = db.GetMany(ctx, []string{"A", "B"})
	assert.ErrorIs(t, err, q.getErr)

	q.setErr = errors.New("read only")
	assert.ErrorIs(t, db.Set(ctx, "A", int64(1)), q.setErr)

	assert.Error(t, db.Set(ctx, "A", struct{}{}))

	q.getErr = nil
	q.rows["BROKEN"] = json.RawMessage(`{"__type__": "date", "__value__": "nope"}`)
	_, _, err = db.Get(ctx, "BROKEN")
	assert.Error(t, err)
}

func TestDatabase_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	q := newMockQuerier()
	db := NewDatabase(q)
	require.NoError(t, db.Set(ctx, "B", int64(1)))
	require.NoError(t, db.Set(ctx, "A", int64(2)))

	keys, err := db.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, keys)

	n, err := db.Delete(ctx, []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	keys, err = db.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, keys)
}

func TestCachedDatabase(t *testing.T) {
	ctx := context.Background()
	q := newMockQuerier()
	c := NewCached(NewDatabase(q), time.Minute)
	t.Cleanup(c.Close)

	for range 3 {
		_, found, err := c.Get(ctx, "A")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, int32(1), q.getCallCount.Load())

	require.NoError(t, c.Set(ctx, "A", "hello"))
	v, found, err := c.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)
	assert.Equal(t, int32(2), q.getCallCount.Load())
}
