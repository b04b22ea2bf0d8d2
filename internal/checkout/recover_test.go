package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

var gatewayReq = checkout.Request{DeliveryAddress: "1 Main Rd", Method: checkout.MethodGateway}

// failAfterPayment runs a gateway checkout whose ledger write fails.
func (f *fixture) failAfterPayment(t *testing.T) *checkout.PostPaymentOrderCreationError {
	t.Helper()
	f.approveConfirmation()
	f.gateway.On("Checkout", mock.Anything, int64(23897), alice.Email).
		Return(payment.GatewayResult{Outcome: payment.OutcomeSuccess, Reference: "ref_9"}, nil).Once()
	f.ledger.On("Create", mock.Anything, mock.Anything).Return(errors.New("firestore: unavailable")).Once()

	_, err := f.orch.PlaceOrder(context.Background(), gatewayReq)
	var ppe *checkout.PostPaymentOrderCreationError
	require.ErrorAs(t, err, &ppe)
	require.NotEmpty(t, ppe.Order.ID)
	return ppe
}

func TestRecoverOrder_WritesSameOrderWithoutCharging(t *testing.T) {
	f := newFixture(t, true)
	f.fill(t)
	ppe := f.failAfterPayment(t)

	f.ledger.On("Create", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.ID == ppe.Order.ID && o.PaymentReference == "ref_9"
	})).Return(nil).Once()

	res, err := f.orch.RecoverOrder(context.Background(), ppe)

	require.NoError(t, err)
	assert.Equal(t, ppe.Order.ID, res.Order.ID)
	assert.True(t, dec("238.97").Equal(res.Order.TotalAmount))
	assert.Equal(t, "Paystack (Credit/Debit Card)", res.Summary.MethodLabel)
	assert.Zero(t, f.store.Len())
	f.gateway.AssertNumberOfCalls(t, "Checkout", 1)
	f.cards.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestRecoverOrder_AlreadyStoredCountsAsWritten(t *testing.T) {
	f := newFixture(t, true)
	f.fill(t)
	ppe := f.failAfterPayment(t)

	stored := ppe.Order
	stored.Status = order.StatusConfirmed
	f.ledger.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: %s", order.ErrDuplicate, ppe.Order.ID)).Once()
	f.ledger.On("Get", mock.Anything, ppe.Order.ID).Return(stored, nil).Once()

	res, err := f.orch.RecoverOrder(context.Background(), ppe)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, res.Order.Status)
	assert.Zero(t, f.store.Len())
}

func TestRecoverOrder_StillFailingKeepsCart(t *testing.T) {
	f := newFixture(t, true)
	f.fill(t)
	ppe := f.failAfterPayment(t)

	writeErr := errors.New("firestore: deadline exceeded")
	f.ledger.On("Create", mock.Anything, mock.Anything).Return(writeErr).Once()

	_, err := f.orch.RecoverOrder(context.Background(), ppe)

	var again *checkout.PostPaymentOrderCreationError
	require.ErrorAs(t, err, &again)
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, ppe.Order.ID, again.Order.ID)
	assert.Equal(t, 3, f.store.TotalItemCount())
}

func TestRecoverOrder_NeedsACapturedPayment(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.orch.RecoverOrder(context.Background(), nil)
	assert.Error(t, err)
	_, err = f.orch.RecoverOrder(context.Background(), &checkout.PostPaymentOrderCreationError{Order: order.Order{ID: "ord_1"}})
	assert.Error(t, err)
	f.ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_UnverifiedPaymentIsNotAPaymentFailure(t *testing.T) {
	f := newFixture(t, true)
	f.fill(t)
	f.approveConfirmation()
	f.gateway.On("Checkout", mock.Anything, mock.Anything, mock.Anything).
		Return(payment.GatewayResult{Outcome: payment.OutcomeUnverified, Reference: "ref_u", Reason: "verify timed out"}, nil).Once()

	_, err := f.orch.PlaceOrder(context.Background(), gatewayReq)

	var ue *checkout.UnverifiedPaymentError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "ref_u", ue.Reference)
	assert.True(t, dec("238.97").Equal(ue.Amount))
	assert.NotEmpty(t, ue.Order.ID)
	assert.Equal(t, "ref_u", ue.Order.PaymentReference)

	var pe *checkout.PaymentError
	assert.False(t, errors.As(err, &pe))
	assert.Equal(t, 3, f.store.TotalItemCount())
	f.ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_KeepsLinesAddedDuringPayment(t *testing.T) {
	f := newFixture(t, true)
	f.fill(t)
	f.approveConfirmation()
	f.gateway.On("Checkout", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		require.NoError(t, f.store.AddLine(cart.Item{ID: "3", Name: "Fries", UnitPrice: dec("25")}, 1))
		require.NoError(t, f.store.AddLine(cart.Item{ID: "2", Name: "Cola", UnitPrice: dec("18.00")}, 1))
	}).Return(payment.GatewayResult{Outcome: payment.OutcomeSuccess, Reference: "ref_1"}, nil).Once()
	f.ledger.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := f.orch.PlaceOrder(context.Background(), gatewayReq)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Order.ItemCount())
	lines := f.store.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "2", lines[0].ID)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, "3", lines[1].ID)
}
