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
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dynconf/internal/fieldkind"
	"github.com/cardinalhq/dynconf/internal/idgen"
	"github.com/cardinalhq/dynconf/internal/settings"
)

var removeStaleDryRun bool

func init() {
	rootCmd.AddCommand(getSettingsCmd())
}

func getSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change settings",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every setting with its current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings("settings.list", func(ctx context.Context, svc *settings.Service) error {
				return runList(ctx, svc, cmd.OutOrStdout())
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print the current value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings("settings.get", func(ctx context.Context, svc *settings.Service) error {
				return runGet(ctx, svc, cmd.OutOrStdout(), args[0])
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value> [<value>]",
		Short: "Validate and store a new value for a setting",
		Long: `Validate and store a new value for a setting. Date/time settings
accept the date and the time as two separate values.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings("settings.set", func(ctx context.Context, svc *settings.Service) error {
				return runSet(ctx, svc, args[0], args[1:]...)
			})
		},
	})

	removeStaleCmd := &cobra.Command{
		Use:   "remove-stale",
		Short: "Delete stored values of settings that are no longer declared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings("settings.remove-stale", func(ctx context.Context, svc *settings.Service) error {
				return runRemoveStale(ctx, svc, cmd.OutOrStdout(), removeStaleDryRun)
			})
		},
	}
	removeStaleCmd.Flags().BoolVar(&removeStaleDryRun, "dry-run", false, "Only print the names that would be removed")
	settingsCmd.AddCommand(removeStaleCmd)

	return settingsCmd
}

func withSettings(command string, fn func(ctx context.Context, svc *settings.Service) error) error {
	return withTelemetry(command, func(ctx context.Context) error {
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a.settings)
	})
}

func runList(ctx context.Context, svc *settings.Service, out io.Writer) error {
	values, err := svc.GetValues(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve settings: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tKIND\tHELP")
	for name, v := range values.All() {
		def, err := svc.Registry().Lookup(name)
		if err != nil {
			return err
		}
		kind := def.Kind().String()
		if def.IsDerived() {
			kind = "derived"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, fieldkind.Format(v), kind, def.HelpText)
	}
	return w.Flush()
}

func runGet(ctx context.Context, svc *settings.Service, out io.Writer, name string) error {
	v, err := svc.Get(ctx, name)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, fieldkind.Format(v))
	return err
}

func runSet(ctx context.Context, svc *settings.Service, name string, parts ...string) error {
	opID := idgen.OperationID()
	err := svc.SetValue(ctx, name, fieldkind.Raw(parts...))

	var verr *fieldkind.ValidationError
	switch {
	case errors.As(err, &verr):
		slog.Warn("Rejected setting value",
			slog.String("operation", opID),
			slog.String("name", name),
			slog.String("code", verr.Code))
		return fmt.Errorf("%s: %s", name, verr.Message)
	case err != nil:
		return err
	}

	slog.Info("Setting updated", slog.String("operation", opID), slog.String("name", name))
	return nil
}

func runRemoveStale(ctx context.Context, svc *settings.Service, out io.Writer, dryRun bool) error {
	var (
		names []string
		err   error
	)
	if dryRun {
		names, err = svc.StaleKeys(ctx)
	} else {
		names, err = svc.RemoveStale(ctx)
	}
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	slog.Info("Stale settings processed",
		slog.Int("count", len(names)),
		slog.Bool("dryRun", dryRun))
	return nil
}
