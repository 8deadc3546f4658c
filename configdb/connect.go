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

package configdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	configdbmigrations "github.com/cardinalhq/dynconf/configdb/migrations"
	"github.com/cardinalhq/dynconf/internal/dbopen"
)

// DefaultEnvPrefix is the environment prefix used to discover the
// settings database when none is configured.
const DefaultEnvPrefix = "CONFIGDB"

// ConnectToConfigDB opens a pool to the settings database described by
// the environment variables under opts' prefix and checks its migration
// version.
func ConnectToConfigDB(ctx context.Context, opts ...dbopen.Options) (*pgxpool.Pool, error) {
	var o dbopen.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	prefix := o.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	connectionString, err := dbopen.GetDatabaseURLFromEnv(prefix)
	if err != nil {
		return nil, errors.Join(dbopen.ErrDatabaseNotConfigured, fmt.Errorf("failed to get %s connection string: %w", prefix, err))
	}

	pool, err := NewConnectionPool(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	if err := configdbmigrations.CheckVersion(ctx, pool, o.MigrationCheckOptions...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s migration version check failed: %w", prefix, err)
	}

	return pool, nil
}

// ConfigDBStore connects and wraps the pool in a Store.
func ConfigDBStore(ctx context.Context, opts ...dbopen.Options) (*Store, error) {
	pool, err := ConnectToConfigDB(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}
