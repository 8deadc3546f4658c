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

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/dynconf/internal/fieldkind"
)

// Config aggregates configuration for the application.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	// Declarations is the settings declarations file, or "env:VAR".
	Declarations  string            `mapstructure:"declarations"`
	Formats       fieldkind.Formats `mapstructure:"formats"`
	PreferDecimal bool              `mapstructure:"prefer_decimal"`
}

// BackendConfig selects where setting values are stored.
type BackendConfig struct {
	Kind string `mapstructure:"kind"`
	// CacheTTL wraps the backend in a TTL cache when positive.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// DatabaseEnvPrefix selects the PREFIX_* variables describing the
	// settings database.
	DatabaseEnvPrefix string `mapstructure:"database_env_prefix"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:              BackendDatabase,
			CacheTTL:          DefaultCacheTTL,
			DatabaseEnvPrefix: DefaultDatabaseEnvPrefix,
		},
		Declarations: DefaultDeclarationsFile,
		Formats:      fieldkind.DefaultFormats(),
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "DYNCONF" and the dot character
// in keys is replaced by an underscore. For example, "backend.cache_ttl"
// becomes "DYNCONF_BACKEND_CACHE_TTL".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("DYNCONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values no component can use.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendMemory, BackendDatabase:
	default:
		return fmt.Errorf("unknown backend %q: expected %s or %s", c.Backend.Kind, BackendMemory, BackendDatabase)
	}
	if c.Backend.CacheTTL < 0 {
		return fmt.Errorf("backend.cache_ttl must not be negative, got %s", c.Backend.CacheTTL)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
