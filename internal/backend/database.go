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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/dynconf/configdb"
	"github.com/cardinalhq/dynconf/internal/codec"
)

// SettingsQuerier is the subset of configdb used by Database.
type SettingsQuerier interface {
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
	GetSettings(ctx context.Context, keys []string) ([]configdb.GetSettingsRow, error)
	UpsertSetting(ctx context.Context, arg configdb.UpsertSettingParams) error
	ListSettings(ctx context.Context) ([]configdb.DynconfSetting, error)
	DeleteSetting(ctx context.Context, key string) (int64, error)
}

// batchDeleter is implemented by configdb.Store, which deletes in one transaction.
type batchDeleter interface {
	DeleteSettings(ctx context.Context, keys []string) (int64, error)
}

// Database stores values in the settings table, encoded with the value codec.
type Database struct {
	querier SettingsQuerier
}

var (
	_ Backend = (*Database)(nil)
	_ Lister  = (*Database)(nil)
	_ Deleter = (*Database)(nil)
)

func NewDatabase(querier SettingsQuerier) *Database {
	return &Database{querier: querier}
}

func (d *Database) Get(ctx context.Context, name string) (any, bool, error) {
	recordOperation(ctx, "database", "get")
	raw, err := d.querier.GetSetting(ctx, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get setting %s: %w", name, err)
	}
	v, err := codec.Unmarshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode setting %s: %w", name, err)
	}
	return v, true, nil
}

func (d *Database) GetMany(ctx context.Context, names []string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	if len(names) == 0 {
		return out, nil
	}
	recordOperation(ctx, "database", "get_many")
	rows, err := d.querier.GetSettings(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	for _, row := range rows {
		v, err := codec.Unmarshal(row.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode setting %s: %w", row.Key, err)
		}
		out[row.Key] = v
	}
	return out, nil
}

func (d *Database) Set(ctx context.Context, name string, value any) error {
	recordOperation(ctx, "database", "set")
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", name, err)
	}
	if err := d.querier.UpsertSetting(ctx, configdb.UpsertSettingParams{Key: name, Value: raw}); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", name, err)
	}
	return nil
}

// Keys returns the stored names, sorted.
func (d *Database) Keys(ctx context.Context) ([]string, error) {
	recordOperation(ctx, "database", "list")
	rows, err := d.querier.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = row.Key
	}
	return keys, nil
}

func (d *Database) Delete(ctx context.Context, names []string) (int64, error) {
	recordOperation(ctx, "database", "delete")
	if bd, ok := d.querier.(batchDeleter); ok {
		return bd.DeleteSettings(ctx, names)
	}
	var deleted int64
	for _, name := range names {
		n, err := d.querier.DeleteSetting(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete setting %s: %w", name, err)
		}
		deleted += n
	}
	return deleted, nil
}
