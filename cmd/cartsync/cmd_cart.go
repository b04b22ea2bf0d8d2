package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/internal/cart"
)

const closeTimeout = 20 * time.Second

// withCart signs userID in, hands the loaded cart to fn and writes any
// change back to every backend before returning.
func withCart(ctx context.Context, opts app.Options, userID string, fn func(*app.App, *cart.Store) error) (err error) {
	opts.Carts = true
	a, err := app.Boot(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	store := cart.NewStore()
	coord := a.NewCoordinator(store)
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := coord.Close(cctx); cerr != nil && err == nil {
			err = fmt.Errorf("cart not fully saved: %w", cerr)
		}
	}()

	if err := coord.SignIn(ctx, userID); err != nil {
		return err
	}
	return fn(a, store)
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Read and edit a user's stored cart",
}

// cartsync cart show <user>
var cartShowCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Print the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd.Context(), app.Options{}, args[0], func(_ *app.App, s *cart.Store) error {
			printCart(s)
			return nil
		})
	},
}

var (
	addID     string
	addName   string
	addPrice  string
	addQty    int
	addExtras []string
)

// cartsync cart add <user> --id 1 --name "Classic Burger" --price 89.99 --extra x1:Bacon:15.50
var cartAddCmd = &cobra.Command{
	Use:   "add <user>",
	Short: "Add units of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(addPrice)
		if err != nil {
			return fmt.Errorf("--price: %w", err)
		}
		item := cart.Item{ID: addID, Name: addName, UnitPrice: price}
		for _, raw := range addExtras {
			m, err := parseModifier(raw)
			if err != nil {
				return err
			}
			item.Extras = append(item.Extras, m)
		}

		return withCart(cmd.Context(), app.Options{}, args[0], func(_ *app.App, s *cart.Store) error {
			if err := s.AddLine(item, addQty); err != nil {
				return err
			}
			printCart(s)
			return nil
		})
	},
}

// cartsync cart set <user> <item> <qty>
var cartSetCmd = &cobra.Command{
	Use:   "set <user> <item> <qty>",
	Short: "Change the quantity of a line; 0 removes it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("quantity %q: %w", args[2], err)
		}
		return withCart(cmd.Context(), app.Options{}, args[0], func(_ *app.App, s *cart.Store) error {
			s.SetQuantity(args[1], qty)
			printCart(s)
			return nil
		})
	},
}

// cartsync cart remove <user> <item>
var cartRemoveCmd = &cobra.Command{
	Use:   "remove <user> <item>",
	Short: "Remove a line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd.Context(), app.Options{}, args[0], func(_ *app.App, s *cart.Store) error {
			s.RemoveLine(args[1])
			printCart(s)
			return nil
		})
	},
}

// cartsync cart clear <user>
var cartClearCmd = &cobra.Command{
	Use:   "clear <user>",
	Short: "Empty the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCart(cmd.Context(), app.Options{}, args[0], func(_ *app.App, s *cart.Store) error {
			s.Clear()
			fmt.Println("Cart cleared.")
			return nil
		})
	},
}

// parseModifier reads "id:name:price".
func parseModifier(raw string) (cart.Modifier, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return cart.Modifier{}, fmt.Errorf("--extra %q: want id:name:price", raw)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return cart.Modifier{}, fmt.Errorf("--extra %q: %w", raw, err)
	}
	return cart.Modifier{ID: parts[0], Name: parts[1], Price: price}, nil
}

func printCart(s *cart.Store) {
	lines := s.Lines()
	if len(lines) == 0 {
		fmt.Println("Cart is empty.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tTOTAL")
	for _, l := range lines {
		name := l.Name
		for _, m := range l.Modifiers() {
			name += " +" + m.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.ID, name, l.Quantity, l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t%s\n", s.TotalItemCount(), s.TotalPrice().StringFixed(2))
	w.Flush()
}

func init() {
	f := cartAddCmd.Flags()
	f.StringVar(&addID, "id", "", "item id (required)")
	f.StringVar(&addName, "name", "", "item name")
	f.StringVar(&addPrice, "price", "0", "unit price")
	f.IntVarP(&addQty, "qty", "q", 1, "units to add")
	f.StringArrayVar(&addExtras, "extra", nil, "selected extra as id:name:price (repeatable)")
	_ = cartAddCmd.MarkFlagRequired("id")

	cartCmd.AddCommand(cartShowCmd, cartAddCmd, cartSetCmd, cartRemoveCmd, cartClearCmd)
}
