// Package order is the client for the remote order ledger.
//
// Orders are written once, in StatusPending, by checkout and afterwards only
// move forward through the status machine:
//
//	pending → confirmed → preparing → ready → delivered
//	pending | confirmed → cancelled
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrDuplicate         = errors.New("order: id already exists")
	ErrInvalidStatus     = errors.New("order: unknown status")
	ErrInvalidTransition = errors.New("order: status transition not allowed")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusDelivered},
}

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// PaymentMethod records how the order was paid.
type PaymentMethod string

const (
	PaymentGateway        PaymentMethod = "gateway"
	PaymentStoredCard     PaymentMethod = "stored_card"
	PaymentNewCard        PaymentMethod = "new_card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Order is the ledger record. Items is a snapshot taken at checkout and is
// never updated afterwards.
type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Items            []cart.Line     `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Currency         string          `json:"currency"`
	DeliveryAddress  string          `json:"deliveryAddress"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Draft builds an unsaved pending order for a copy of lines. Line totals
// and the order totals are recomputed from the item prices.
func Draft(userID string, lines []cart.Line, deliveryFee decimal.Decimal, currency string) Order {
	lines = cart.Priced(lines)
	subtotal := cart.Subtotal(lines)
	return Order{
		UserID:      userID,
		Items:       lines,
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		TotalAmount: subtotal.Add(deliveryFee),
		Currency:    currency,
		Status:      StatusPending,
	}
}

// ItemCount is the number of units across all lines.
func (o Order) ItemCount() int { return cart.ItemCount(o.Items) }

// Ledger is the order collection.
type Ledger interface {
	// Create stores o as a new pending order. An empty ID is filled in, and
	// CreatedAt/UpdatedAt are set by the ledger.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus moves an order to status and returns it as stored.
	UpdateStatus(ctx context.Context, id string, status Status) (Order, error)
}

// NewID returns a fresh order id. Callers that may need to retry a Create
// assign it up front so the retry hits ErrDuplicate instead of a second order.
func NewID() string { return uuid.NewString() }

// prepareCreate fills the fields every ledger owns on insert.
func prepareCreate(o *Order, now time.Time) {
	if strings.TrimSpace(o.ID) == "" {
		o.ID = NewID()
	}
	now = now.UTC()
	o.Status = StatusPending
	o.CreatedAt, o.UpdatedAt = now, now
}

func checkTransition(from, to Status) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
