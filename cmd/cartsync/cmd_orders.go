package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/internal/order"
)

var (
	ordersUser string
	ordersJSON bool
)

func withLedger(cmd *cobra.Command, fn func(order.Ledger) error) error {
	a, err := app.Boot(cmd.Context(), app.Options{Ledger: true})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Ledger)
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and update the order ledger",
}

// cartsync orders list [--user u1]
var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(l order.Ledger) error {
			var (
				list []order.Order
				err  error
			)
			if ordersUser != "" {
				list, err = l.ListByUser(cmd.Context(), ordersUser)
			} else {
				list, err = l.ListAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			if ordersJSON {
				return printJSON(list)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tSTATUS\tITEMS\tTOTAL\tPAYMENT\tCREATED")
			for _, o := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s %s\t%s\t%s\n",
					o.ID, o.UserID, o.Status, o.ItemCount(),
					o.TotalAmount.StringFixed(2), o.Currency, o.PaymentMethod,
					o.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

// cartsync orders show <id>
var ordersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one order as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(l order.Ledger) error {
			o, err := l.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(o)
		})
	},
}

// cartsync orders status <id> <status>
var ordersStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move an order to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := order.ParseStatus(args[1])
		if err != nil {
			return err
		}
		return withLedger(cmd, func(l order.Ledger) error {
			o, err := l.UpdateStatus(cmd.Context(), args[0], to)
			if err != nil {
				return err
			}
			fmt.Printf("Order %s is now %s.\n", o.ID, o.Status)
			return nil
		})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ordersListCmd.Flags().StringVarP(&ordersUser, "user", "u", "", "only orders of this user")
	ordersListCmd.Flags().BoolVar(&ordersJSON, "json", false, "print JSON")
	ordersCmd.AddCommand(ordersListCmd, ordersShowCmd, ordersStatusCmd)
}
