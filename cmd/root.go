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
	"os"

	"github.com/spf13/cobra"
)

var (
	declarationsFile string
	backendKind      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dynconf",
	Short: "Manage dynamic application settings",
	Long: `Read and change typed settings whose values live in a backing store
and can be changed at runtime without redeploying the application.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&declarationsFile, "declarations", "", "Settings declarations file, or env:VAR (overrides DYNCONF_DECLARATIONS)")
	rootCmd.PersistentFlags().StringVar(&backendKind, "backend", "", "Value backend: memory or database (overrides DYNCONF_BACKEND_KIND)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
