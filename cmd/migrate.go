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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dynconf/configdb"
	configdbmigrations "github.com/cardinalhq/dynconf/configdb/migrations"
	"github.com/cardinalhq/dynconf/internal/dbopen"
)

func init() {
	rootCmd.AddCommand(MigrateCmd)
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  "Apply the settings database schema migrations.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withTelemetry("migrate", migrate)
	},
}

func migrate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	opts := dbopen.SkipMigrationCheck().WithEnvPrefix(cfg.Backend.DatabaseEnvPrefix)
	pool, err := configdb.ConnectToConfigDB(ctx, opts)
	if err != nil {
		if errors.Is(err, dbopen.ErrDatabaseNotConfigured) {
			slog.Info("Settings database not configured, skipping migration")
			return nil
		}
		return err
	}
	defer pool.Close()

	slog.Info("Running configdb migrations")
	if err := configdbmigrations.RunMigrationsUp(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate configdb: %w", err)
	}
	slog.Info("configdb migrations completed successfully")
	return nil
}
