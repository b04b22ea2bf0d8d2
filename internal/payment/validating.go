package payment

import (
	"context"
	"strings"

	"github.com/shashiranjanraj/cartsync/pkg/validate"
)

// CheckCharge returns the first problem with ch, checking the card number,
// holder, expiry month, expiry year, CVV and amount in that order. It
// returns nil for a valid charge.
func CheckCharge(ch Charge) *validate.FieldError {
	if ch.Card == nil {
		if strings.TrimSpace(ch.StoredCardID) == "" {
			return &validate.FieldError{Field: "card", Message: "A card is required."}
		}
	} else if fe := validate.First(ch.Card); fe != nil {
		return fe
	}
	if !ch.Amount.IsPositive() {
		return &validate.FieldError{Field: "amount", Message: "The amount must be greater than 0."}
	}
	return nil
}

// Validating rejects malformed charges before they reach next.
func Validating(next CardProcessor) CardProcessor {
	return validatingProcessor{next: next}
}

type validatingProcessor struct {
	next CardProcessor
}

func (p validatingProcessor) Process(ctx context.Context, ch Charge) (CardResult, error) {
	if fe := CheckCharge(ch); fe != nil {
		return CardResult{Reason: fe.Message}, nil
	}
	return p.next.Process(ctx, ch)
}
