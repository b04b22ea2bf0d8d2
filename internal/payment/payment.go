// Package payment holds the payment collaborators used by checkout: a
// redirect-style Gateway (Paystack) and a CardProcessor for stored and
// newly entered cards.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome of a gateway checkout.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
	// OutcomeUnverified means the customer finished at the gateway but the
	// result could not be confirmed. Funds may have been captured under
	// Reference.
	OutcomeUnverified Outcome = "unverified"
)

// GatewayResult is what the customer did at the gateway. Reference is set
// whenever a transaction was started.
type GatewayResult struct {
	Outcome   Outcome
	Reference string
	Reason    string
}

// Gateway takes the customer through an external payment flow.
// amountMinor is in the currency's minor unit (cents). An error means the
// gateway could not be used at all; a declined payment is a result.
type Gateway interface {
	Checkout(ctx context.Context, amountMinor int64, email string) (GatewayResult, error)
}

// Card is a card entered at checkout. It is passed through to the processor
// and never stored.
type Card struct {
	Number      string `json:"cardNumber"     validate:"required,card_number"`
	Holder      string `json:"cardHolderName" validate:"required,max=64"`
	ExpiryMonth string `json:"expiryMonth"    validate:"required,integer,between=1,12"`
	ExpiryYear  string `json:"expiryYear"     validate:"required,digits,min=2,max=4"`
	CVV         string `json:"cvv"            validate:"required,digits,min=3,max=4"`
}

// Last4 returns the last four digits of the number.
func (c Card) Last4() string {
	n := strings.ReplaceAll(c.Number, " ", "")
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// Charge asks a CardProcessor to take Amount from either a stored card
// (StoredCardID) or Card.
type Charge struct {
	StoredCardID string
	Card         *Card
	Amount       decimal.Decimal
	Currency     string
	Email        string
}

// CardResult reports an approved charge with its transaction id, or a
// decline with a reason.
type CardResult struct {
	Approved      bool
	TransactionID string
	Reason        string
}

type CardProcessor interface {
	Process(ctx context.Context, ch Charge) (CardResult, error)
}

var ErrCancelled = errors.New("payment: cancelled by customer")

// NewReference returns a unique transaction reference.
func NewReference() string {
	return "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
