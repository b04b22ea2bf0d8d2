package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

var (
	coEmail      string
	coAddress    string
	coMethod     string
	coYes        bool
	coCardID     string
	coCardLast4  string
	coCardNumber string
	coCardHolder string
	coCardExpiry string
	coCardCVV    string
)

// cartsync checkout <user> --address "12 Main Rd" --method cash_on_delivery
var checkoutCmd = &cobra.Command{
	Use:   "checkout <user>",
	Short: "Place an order for the user's stored cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		req, err := checkoutRequest()
		if err != nil {
			return err
		}
		userID := args[0]
		term := newTerminal(os.Stdin, os.Stdout)
		var confirm checkout.Confirmer = term
		if coYes {
			confirm = checkout.AlwaysConfirm
		}
		session := checkout.SessionFunc(func() (checkout.Customer, bool) {
			return checkout.Customer{ID: userID, Email: coEmail}, true
		})

		return withCart(ctx, app.Options{Ledger: true}, userID, func(a *app.App, s *cart.Store) error {
			res, err := a.NewOrchestrator(s, session, confirm, term).PlaceOrder(ctx, req)
			if err != nil {
				return describeCheckoutError(err)
			}
			fmt.Printf("\nOrder %s placed: %s %s, %s.\n",
				res.Order.ID, res.Order.TotalAmount.StringFixed(2), res.Order.Currency, res.Summary.MethodLabel)
			return nil
		})
	},
}

func checkoutRequest() (checkout.Request, error) {
	req := checkout.Request{DeliveryAddress: coAddress, Method: checkout.Method(coMethod)}
	switch req.Method {
	case checkout.MethodStoredCard:
		req.StoredCard = &checkout.StoredCard{ID: coCardID, Last4: coCardLast4}
	case checkout.MethodNewCard:
		month, year, ok := strings.Cut(coCardExpiry, "/")
		if !ok {
			return req, fmt.Errorf("--card-expiry %q: want MM/YY", coCardExpiry)
		}
		req.Card = &payment.Card{
			Number:      coCardNumber,
			Holder:      coCardHolder,
			ExpiryMonth: month,
			ExpiryYear:  year,
			CVV:         coCardCVV,
		}
	}
	return req, nil
}

func describeCheckoutError(err error) error {
	var (
		verr *checkout.ValidationError
		perr *checkout.PaymentError
		post *checkout.PostPaymentOrderCreationError
		unv  *checkout.UnverifiedPaymentError
	)
	switch {
	case errors.Is(err, checkout.ErrCheckoutAborted):
		fmt.Println("Order not placed.")
		return nil
	case errors.As(err, &verr):
		return fmt.Errorf("cannot check out: %s %s", verr.Field, verr.Reason)
	case errors.As(err, &perr):
		if perr.Outcome == payment.OutcomeCancelled {
			fmt.Println("Payment cancelled. Your cart is unchanged.")
			return nil
		}
		return fmt.Errorf("payment failed: %s", perr.Reason)
	case errors.As(err, &post):
		return fmt.Errorf("payment %s of %s went through but the order could not be saved; quote the reference to support: %w",
			post.Reference, post.Amount.StringFixed(2), post.Err)
	case errors.As(err, &unv):
		return fmt.Errorf("payment %s of %s could not be confirmed; do not pay again, quote the reference to support: %s",
			unv.Reference, unv.Amount.StringFixed(2), unv.Reason)
	case errors.Is(err, context.Canceled):
		return errors.New("interrupted")
	}
	return err
}

func init() {
	f := checkoutCmd.Flags()
	f.StringVar(&coEmail, "email", "", "customer email, needed for gateway payments")
	f.StringVar(&coAddress, "address", "", "delivery address")
	f.StringVar(&coMethod, "method", string(checkout.MethodCashOnDelivery), "gateway, stored_card, new_card or cash_on_delivery")
	f.BoolVarP(&coYes, "yes", "y", false, "skip the confirmation prompt")
	f.StringVar(&coCardID, "card-id", "", "stored card authorization code")
	f.StringVar(&coCardLast4, "card-last4", "", "stored card last four digits")
	f.StringVar(&coCardNumber, "card-number", "", "new card number")
	f.StringVar(&coCardHolder, "card-holder", "", "new card holder name")
	f.StringVar(&coCardExpiry, "card-expiry", "", "new card expiry as MM/YY")
	f.StringVar(&coCardCVV, "cvv", "", "new card CVV")
}
