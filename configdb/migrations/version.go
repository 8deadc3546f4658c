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

package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/dynconf/migrations"
)

const dbName = "configdb"

// ErrVersionMismatch is returned when the database schema does not match
// the embedded migrations.
var ErrVersionMismatch = errors.New("migration version mismatch")

// CheckVersion verifies that the settings database is at the expected
// migration version. Defaults come from the CONFIGDB_ environment and are
// overridden by opts.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, opts ...migrations.CheckOption) error {
	config := migrations.Resolve(migrations.FromEnv("CONFIGDB"), opts...)
	if config.Mode == migrations.CheckModeSkip {
		slog.Debug("Migration version checking disabled", slog.String("database", dbName))
		return nil
	}

	expected, err := LatestVersion()
	if err != nil {
		return err
	}

	err = waitForVersion(ctx, expected, config, func() (uint, bool, error) {
		return currentVersion(pool)
	})
	if err != nil && config.Mode == migrations.CheckModeWarn {
		slog.Warn("Migration version check failed, continuing",
			slog.String("database", dbName),
			slog.Any("error", err))
		return nil
	}
	return err
}

// LatestVersion returns the highest version among the embedded migrations.
func LatestVersion() (uint, error) {
	v, err := extractLatestMigrationVersion(migrationFiles)
	if err != nil {
		return 0, fmt.Errorf("failed to extract expected migration version for %s: %w", dbName, err)
	}
	return v, nil
}

// extractLatestMigrationVersion extracts the highest migration version from
// files named like "1751057788_initial.up.sql".
func extractLatestMigrationVersion(files fs.ReadDirFS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}

// waitForVersion polls current until it reports expected, the timeout
// passes, or ctx is done. A newer schema or a disallowed dirty state
// fails immediately.
func waitForVersion(ctx context.Context, expected uint, config migrations.CheckOptions, current func() (uint, bool, error)) error {
	slog.Info("Checking migration version",
		slog.String("database", dbName),
		slog.Uint64("expected_version", uint64(expected)),
		slog.Duration("timeout", config.Timeout))

	deadline := time.Now().Add(config.Timeout)
	ticker := time.NewTicker(config.RetryInterval)
	defer ticker.Stop()

	for {
		version, dirty, err := current()
		if err != nil {
			return fmt.Errorf("failed to get current migration version for %s: %w", dbName, err)
		}

		if dirty && !config.AllowDirty {
			return fmt.Errorf("database %s migration is in dirty state, please fix before proceeding", dbName)
		}
		if dirty {
			slog.Warn("Database migration is dirty but allowed to continue", slog.String("database", dbName))
		}

		switch {
		case version == expected:
			slog.Info("Migration version check passed",
				slog.String("database", dbName),
				slog.Uint64("version", uint64(version)))
			return nil
		case version > expected:
			return fmt.Errorf("%w: database %s version %d is newer than expected version %d",
				ErrVersionMismatch, dbName, version, expected)
		case time.Now().After(deadline):
			return fmt.Errorf("%w: timeout waiting for %s migration to complete: current version %d, expected %d",
				ErrVersionMismatch, dbName, version, expected)
		}

		slog.Info("Waiting for migrations to complete",
			slog.String("database", dbName),
			slog.Uint64("current_version", uint64(version)),
			slog.Uint64("expected_version", uint64(expected)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for %s migrations: %w", dbName, ctx.Err())
		case <-ticker.C:
		}
	}
}

func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, closeFn, err := newMigrate(pool, migrationFiles, migrationsTable)
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}
