// Package checkout places orders from the signed-in user's cart.
//
// PlaceOrder runs four phases and stops at the first failure:
//
//  1. validate the request against the cart (no side effects)
//  2. show a Summary to the Confirmer
//  3. collect payment for the chosen Method
//  4. write the order to the ledger, then take the ordered lines out of the cart
//
// The cart is only touched once the ledger has accepted the order, and only
// the ordered quantities are removed: lines added while the customer was at
// the gateway stay. When the ledger fails after a payment, RecoverOrder
// writes the same order again without charging.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/metrics"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/payment"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// Method is how the customer pays.
type Method = order.PaymentMethod

const (
	MethodGateway        = order.PaymentGateway
	MethodStoredCard     = order.PaymentStoredCard
	MethodNewCard        = order.PaymentNewCard
	MethodCashOnDelivery = order.PaymentCashOnDelivery
)

// Customer is the signed-in user.
type Customer struct {
	ID    string
	Email string
}

// Session reports the signed-in customer; ok is false while anonymous.
type Session interface {
	Customer() (c Customer, ok bool)
}

// SessionFunc adapts a function to Session.
type SessionFunc func() (Customer, bool)

func (f SessionFunc) Customer() (Customer, bool) { return f() }

// Confirmer asks the customer to accept the summary. Returning false aborts
// the checkout.
type Confirmer interface {
	Confirm(ctx context.Context, s Summary) (bool, error)
}

type ConfirmerFunc func(ctx context.Context, s Summary) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, s Summary) (bool, error) { return f(ctx, s) }

// AlwaysConfirm accepts every summary. For non-interactive callers.
var AlwaysConfirm Confirmer = ConfirmerFunc(func(context.Context, Summary) (bool, error) { return true, nil })

// StoredCard is a card the customer saved earlier. ID is the processor's
// authorization code.
type StoredCard struct {
	ID    string
	Last4 string
}

// Request is one checkout attempt.
type Request struct {
	DeliveryAddress string
	Method          Method
	// StoredCard is required for MethodStoredCard.
	StoredCard *StoredCard
	// Card is required for MethodNewCard.
	Card *payment.Card
}

// Result of a placed order.
type Result struct {
	Order   order.Order
	Summary Summary
}

type Option func(*Orchestrator)

func WithGateway(g payment.Gateway) Option {
	return func(o *Orchestrator) { o.gateway = g }
}

func WithCardProcessor(p payment.CardProcessor) Option {
	return func(o *Orchestrator) { o.cards = p }
}

// WithDeliveryFee sets the flat fee added to every order.
func WithDeliveryFee(fee decimal.Decimal) Option {
	return func(o *Orchestrator) { o.fee = fee }
}

func WithCurrency(code string) Option {
	return func(o *Orchestrator) { o.currency = strings.ToUpper(code) }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator places orders. Only one PlaceOrder runs at a time.
type Orchestrator struct {
	store   *cart.Store
	ledger  order.Ledger
	session Session
	confirm Confirmer
	gateway payment.Gateway
	cards   payment.CardProcessor

	fee      decimal.Decimal
	currency string
	log      *slog.Logger

	busy atomic.Bool
}

// DefaultDeliveryFee and DefaultCurrency apply unless overridden by options.
var (
	DefaultDeliveryFee = decimal.RequireFromString("9.99")
	DefaultCurrency    = "ZAR"
)

func New(store *cart.Store, ledger order.Ledger, session Session, confirm Confirmer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		ledger:   ledger,
		session:  session,
		confirm:  confirm,
		fee:      DefaultDeliveryFee,
		currency: DefaultCurrency,
		log:      logger.L,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InProgress reports whether a checkout is running. UIs use it to disable
// the place-order action.
func (o *Orchestrator) InProgress() bool { return o.busy.Load() }

// PlaceOrder checks out the current cart. See the package documentation for
// the phases and the errors each can return.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, ErrCheckoutInProgress
	}
	defer o.busy.Store(false)

	start := time.Now()
	outcome := "error"
	defer metrics.ObserveCheckout(string(req.Method), &outcome, start)

	cust, draft, err := o.validate(req)
	if err != nil {
		outcome = "invalid"
		return Result{}, err
	}
	log := o.log.With("user_id", cust.ID, "method", string(req.Method))
	ctx = logger.IntoCtx(ctx, log)

	sum := o.summarize(draft, req)
	ok, err := o.confirm.Confirm(ctx, sum)
	if err != nil {
		return Result{}, fmt.Errorf("checkout: confirm: %w", err)
	}
	if !ok {
		outcome = "aborted"
		log.Info("checkout: declined at confirmation")
		return Result{}, ErrCheckoutAborted
	}

	// Fixed before paying so a recovered write reuses it.
	draft.ID = order.NewID()

	ref, err := o.pay(ctx, req, cust, draft.TotalAmount)
	var unverified *UnverifiedPaymentError
	if errors.As(err, &unverified) {
		outcome = "payment_unverified"
		unverified.Order = draft
		unverified.Order.PaymentReference = unverified.Reference
		log.Error("checkout: payment result unknown", "reference", unverified.Reference,
			"amount", draft.TotalAmount.StringFixed(2), "reason", unverified.Reason)
		return Result{}, unverified
	}
	if err != nil {
		outcome = "payment_failed"
		log.Warn("checkout: payment not completed", "error", err)
		return Result{}, err
	}
	draft.PaymentReference = ref

	if err := o.ledger.Create(ctx, &draft); err != nil {
		if req.Method == MethodCashOnDelivery {
			outcome = "order_failed"
			log.Error("checkout: order not created", "error", err)
			return Result{}, fmt.Errorf("checkout: create order: %w", err)
		}
		outcome = "post_payment_failure"
		log.Error("checkout: payment captured but order not created",
			"reference", ref, "amount", draft.TotalAmount.StringFixed(2), "error", err)
		return Result{}, &PostPaymentOrderCreationError{Reference: ref, Amount: draft.TotalAmount, Order: draft, Err: err}
	}

	o.consume(draft)
	outcome = "placed"
	log.Info("checkout: order placed",
		"order_id", draft.ID, "total", draft.TotalAmount.StringFixed(2), "reference", ref, "items", draft.ItemCount())
	return Result{Order: draft, Summary: sum}, nil
}

// RecoverOrder writes the order of a checkout whose payment went through but
// whose ledger write failed. Nothing is charged. An order already stored
// under the same id counts as written, so RecoverOrder can be repeated.
func (o *Orchestrator) RecoverOrder(ctx context.Context, failed *PostPaymentOrderCreationError) (Result, error) {
	if failed == nil || strings.TrimSpace(failed.Order.ID) == "" || failed.Reference == "" {
		return Result{}, errors.New("checkout: recover: no captured payment to recover")
	}
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, ErrCheckoutInProgress
	}
	defer o.busy.Store(false)

	start := time.Now()
	outcome := "error"
	defer metrics.ObserveCheckout(string(failed.Order.PaymentMethod), &outcome, start)

	draft := failed.Order
	draft.PaymentReference = failed.Reference
	log := o.log.With("user_id", draft.UserID, "order_id", draft.ID, "reference", failed.Reference)

	err := o.ledger.Create(ctx, &draft)
	switch {
	case errors.Is(err, order.ErrDuplicate):
		if stored, gerr := o.ledger.Get(ctx, draft.ID); gerr == nil {
			draft = stored
		}
		log.Info("checkout: order was already stored")
	case err != nil:
		outcome = "post_payment_failure"
		log.Error("checkout: order still not created", "error", err)
		return Result{}, &PostPaymentOrderCreationError{Reference: failed.Reference, Amount: failed.Amount, Order: failed.Order, Err: err}
	}

	o.consume(failed.Order)
	outcome = "recovered"
	log.Info("checkout: order recovered", "total", draft.TotalAmount.StringFixed(2))
	req := Request{DeliveryAddress: draft.DeliveryAddress, Method: draft.PaymentMethod}
	return Result{Order: draft, Summary: o.summarize(draft, req)}, nil
}

// consume removes the ordered lines from the cart, provided it still
// belongs to the customer who ordered.
func (o *Orchestrator) consume(placed order.Order) {
	if o.store.Owner() != placed.UserID {
		return
	}
	o.store.Consume(placed.Items)
}

func (o *Orchestrator) validate(req Request) (Customer, order.Order, error) {
	cust, ok := o.session.Customer()
	if !ok || strings.TrimSpace(cust.ID) == "" {
		return Customer{}, order.Order{}, &ValidationError{Field: "user", Reason: "sign in to place an order"}
	}
	owner, lines, _ := o.store.Snapshot()
	if owner != cust.ID {
		return Customer{}, order.Order{}, &ValidationError{Field: "user", Reason: "cart belongs to another session"}
	}
	if len(lines) == 0 {
		return Customer{}, order.Order{}, &ValidationError{Field: "cart", Reason: "cart is empty"}
	}
	addr := strings.TrimSpace(req.DeliveryAddress)
	if addr == "" {
		return Customer{}, order.Order{}, &ValidationError{Field: "deliveryAddress", Reason: "enter a delivery address"}
	}

	draft := order.Draft(cust.ID, lines, o.fee, o.currency)
	draft.DeliveryAddress = addr
	draft.PaymentMethod = req.Method

	switch req.Method {
	case MethodCashOnDelivery:
	case MethodGateway:
		if o.gateway == nil {
			return Customer{}, order.Order{}, &ValidationError{Field: "paymentMethod", Reason: "online payment is not available"}
		}
		if strings.TrimSpace(cust.Email) == "" {
			return Customer{}, order.Order{}, &ValidationError{Field: "email", Reason: "an email address is required for online payment"}
		}
	case MethodStoredCard:
		if o.cards == nil {
			return Customer{}, order.Order{}, &ValidationError{Field: "paymentMethod", Reason: "card payment is not available"}
		}
		if req.StoredCard == nil || strings.TrimSpace(req.StoredCard.ID) == "" {
			return Customer{}, order.Order{}, &ValidationError{Field: "card", Reason: "select a saved card"}
		}
	case MethodNewCard:
		if o.cards == nil {
			return Customer{}, order.Order{}, &ValidationError{Field: "paymentMethod", Reason: "card payment is not available"}
		}
		if req.Card == nil {
			return Customer{}, order.Order{}, &ValidationError{Field: "card", Reason: "enter card details"}
		}
		if fe := payment.CheckCharge(payment.Charge{Card: req.Card, Amount: draft.TotalAmount}); fe != nil {
			return Customer{}, order.Order{}, &ValidationError{Field: fe.Field, Reason: fe.Message}
		}
	default:
		return Customer{}, order.Order{}, &ValidationError{Field: "paymentMethod", Reason: fmt.Sprintf("unknown payment method %q", req.Method)}
	}
	return cust, draft, nil
}

func (o *Orchestrator) summarize(draft order.Order, req Request) Summary {
	return Summary{
		ItemCount:   draft.ItemCount(),
		Subtotal:    draft.Subtotal,
		DeliveryFee: draft.DeliveryFee,
		Total:       draft.TotalAmount,
		Currency:    draft.Currency,
		Address:     draft.DeliveryAddress,
		Method:      req.Method,
		MethodLabel: MethodLabel(req),
	}
}

// MethodLabel is the customer-facing name of the request's payment method.
func MethodLabel(req Request) string {
	switch req.Method {
	case MethodCashOnDelivery:
		return "Cash on Delivery"
	case MethodGateway:
		return "Paystack (Credit/Debit Card)"
	case MethodStoredCard:
		if req.StoredCard != nil && req.StoredCard.Last4 != "" {
			return "Card ending in " + req.StoredCard.Last4
		}
		return "Saved Card"
	case MethodNewCard:
		if req.Card != nil {
			return "New Card ending in " + req.Card.Last4()
		}
		return "New Card"
	}
	return string(req.Method)
}

// pay collects total and returns the payment reference. Cash on delivery
// has none.
func (o *Orchestrator) pay(ctx context.Context, req Request, cust Customer, total decimal.Decimal) (string, error) {
	switch req.Method {
	case MethodGateway:
		res, err := o.gateway.Checkout(ctx, cart.MinorUnits(total), cust.Email)
		if err != nil {
			return "", &PaymentError{Method: req.Method, Outcome: payment.OutcomeFailed, Reason: err.Error(), Err: err}
		}
		if res.Outcome == payment.OutcomeUnverified {
			return "", &UnverifiedPaymentError{Method: req.Method, Reference: res.Reference, Amount: total, Reason: res.Reason}
		}
		if res.Outcome != payment.OutcomeSuccess {
			return "", &PaymentError{Method: req.Method, Outcome: res.Outcome, Reason: res.Reason}
		}
		return res.Reference, nil

	case MethodStoredCard, MethodNewCard:
		ch := payment.Charge{Card: req.Card, Amount: total, Currency: o.currency, Email: cust.Email}
		if req.Method == MethodStoredCard {
			ch.Card, ch.StoredCardID = nil, req.StoredCard.ID
		}
		res, err := o.cards.Process(ctx, ch)
		if err != nil {
			return "", &PaymentError{Method: req.Method, Outcome: payment.OutcomeFailed, Reason: err.Error(), Err: err}
		}
		if !res.Approved {
			return "", &PaymentError{Method: req.Method, Outcome: payment.OutcomeFailed, Reason: res.Reason}
		}
		return res.TransactionID, nil
	}
	return "", nil
}
