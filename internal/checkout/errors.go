package checkout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

var (
	// ErrCheckoutAborted means the customer declined the confirmation.
	// Nothing was charged or written.
	ErrCheckoutAborted = errors.New("checkout: aborted by customer")
	// ErrCheckoutInProgress is returned while another PlaceOrder is running.
	ErrCheckoutInProgress = errors.New("checkout: already in progress")
)

// ValidationError is a failed precondition. No collaborator was called.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: invalid %s: %s", e.Field, e.Reason)
}

// PaymentError is a payment that did not go through. The cart is untouched
// and no order exists.
type PaymentError struct {
	Method  Method
	Outcome payment.Outcome
	Reason  string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Outcome == payment.OutcomeCancelled {
		return fmt.Sprintf("checkout: %s payment cancelled", e.Method)
	}
	return fmt.Sprintf("checkout: %s payment failed: %s", e.Method, e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// PostPaymentOrderCreationError means the customer was charged but the order
// could not be written. Order is the unsaved order, Reference identifies the
// charge for reconciliation. The cart is kept; pass the error to
// Orchestrator.RecoverOrder to write the order without charging again.
type PostPaymentOrderCreationError struct {
	Reference string
	Amount    decimal.Decimal
	Order     order.Order
	Err       error
}

func (e *PostPaymentOrderCreationError) Error() string {
	return fmt.Sprintf("checkout: payment %s of %s captured but order was not created: %v",
		e.Reference, e.Amount.StringFixed(2), e.Err)
}

func (e *PostPaymentOrderCreationError) Unwrap() error { return e.Err }

// UnverifiedPaymentError means the customer completed the gateway flow but
// the result could not be confirmed. The charge under Reference may have
// gone through, so PlaceOrder must not simply be retried: check the
// reference with the gateway and, if it was captured, recover the order with
// RecoverOrder(&PostPaymentOrderCreationError{Reference, Amount, Order}).
type UnverifiedPaymentError struct {
	Method    Method
	Reference string
	Amount    decimal.Decimal
	Order     order.Order
	Reason    string
}

func (e *UnverifiedPaymentError) Error() string {
	return fmt.Sprintf("checkout: %s payment %s of %s could not be verified: %s",
		e.Method, e.Reference, e.Amount.StringFixed(2), e.Reason)
}
