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
	"fmt"
	"log/slog"

	"github.com/cardinalhq/dynconf/config"
	"github.com/cardinalhq/dynconf/configdb"
	"github.com/cardinalhq/dynconf/internal/backend"
	"github.com/cardinalhq/dynconf/internal/dbopen"
	"github.com/cardinalhq/dynconf/internal/fieldkind"
	"github.com/cardinalhq/dynconf/internal/registry"
	"github.com/cardinalhq/dynconf/internal/settings"
)

// app is the composition root shared by the settings commands.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	settings *settings.Service
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig loads configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if declarationsFile != "" {
		cfg.Declarations = declarationsFile
	}
	if backendKind != "" {
		cfg.Backend.Kind = backendKind
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	b, closers, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		registry: reg,
		settings: settings.New(reg, b),
		closers:  closers,
	}, nil
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New(
		registry.WithCoercer(fieldkind.NewCoercer(cfg.Formats)),
		registry.WithDecimalPolicy(cfg.PreferDecimal),
	)

	decls, err := registry.ReadDeclarations(cfg.Declarations)
	if err != nil {
		return nil, err
	}
	if err := reg.Apply(decls, registry.NewComputations()); err != nil {
		return nil, fmt.Errorf("invalid declarations in %s: %w", cfg.Declarations, err)
	}
	slog.Debug("Loaded setting declarations",
		slog.String("source", cfg.Declarations),
		slog.Int("settings", reg.Len()))
	return reg, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (backend.Backend, []func(), error) {
	var (
		b       backend.Backend
		closers []func()
	)

	switch cfg.Backend.Kind {
	case config.BackendMemory:
		b = backend.NewMemory()
	case config.BackendDatabase:
		store, err := configdb.ConfigDBStore(ctx, dbopen.Options{EnvPrefix: cfg.Backend.DatabaseEnvPrefix})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to settings database: %w", err)
		}
		b = backend.NewDatabase(store)
		closers = append(closers, store.Close)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}

	if cfg.Backend.CacheTTL > 0 {
		cached := backend.NewCached(b, cfg.Backend.CacheTTL)
		closers = append(closers, cached.Close)
		b = cached
	}
	return b, closers, nil
}
