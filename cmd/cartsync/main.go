// Command cartsync runs the order API and operates on stored carts and
// orders from the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cartsync",
	Short:         "Cart sync and checkout tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		for _, kv := range settingsFlag {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("--set %q: want KEY=VALUE", kv)
			}
			config.Set(k, v)
		}
		return nil
	},
}

var settingsFlag []string

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&settingsFlag, "set", nil, "override a setting, e.g. --set LEDGER_DRIVER=sql (repeatable)")

	rootCmd.AddCommand(serveCmd, routeListCmd)
	rootCmd.AddCommand(migrateCmd, migrateRollbackCmd, migrateStatusCmd)
	rootCmd.AddCommand(ordersCmd, cartCmd, checkoutCmd)
}
