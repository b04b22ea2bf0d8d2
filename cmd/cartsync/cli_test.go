package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

func TestTerminalConfirm(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "yes": true}
	for in, want := range cases {
		var out bytes.Buffer
		term := newTerminal(strings.NewReader(in), &out)
		got, err := term.Confirm(context.Background(), checkout.Summary{ItemCount: 1, Currency: "ZAR"})
		require.NoError(t, err, "%q", in)
		assert.Equal(t, want, got, "%q", in)
		assert.Contains(t, out.String(), "Items: 1")
	}
}

func TestTerminalConfirm_EOFWithoutAnswer(t *testing.T) {
	term := newTerminal(strings.NewReader(""), &bytes.Buffer{})
	_, err := term.Confirm(context.Background(), checkout.Summary{})
	assert.Error(t, err)
}

func TestTerminalAuthorize(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(strings.NewReader("\nc\n"), &out)
	auth := payment.Authorization{URL: "https://checkout.paystack.com/abc"}

	assert.NoError(t, term.Authorize(context.Background(), auth))
	assert.ErrorIs(t, term.Authorize(context.Background(), auth), payment.ErrCancelled)
	assert.Contains(t, out.String(), "https://checkout.paystack.com/abc")
}

func TestParseModifier(t *testing.T) {
	m, err := parseModifier("x1:Bacon:15.50")
	require.NoError(t, err)
	assert.Equal(t, "x1", m.ID)
	assert.Equal(t, "Bacon", m.Name)
	assert.True(t, decimal.RequireFromString("15.5").Equal(m.Price))

	_, err = parseModifier("x1:Bacon")
	assert.Error(t, err)
	_, err = parseModifier("x1:Bacon:cheap")
	assert.Error(t, err)
}

func TestCheckoutRequest_NewCard(t *testing.T) {
	coMethod, coAddress = string(checkout.MethodNewCard), "12 Main Rd"
	coCardNumber, coCardHolder, coCardExpiry, coCardCVV = "4111 1111 1111 1111", "A Shopper", "09/28", "123"
	t.Cleanup(func() { coMethod, coCardExpiry = string(checkout.MethodCashOnDelivery), "" })

	req, err := checkoutRequest()
	require.NoError(t, err)
	require.NotNil(t, req.Card)
	assert.Equal(t, "09", req.Card.ExpiryMonth)
	assert.Equal(t, "28", req.Card.ExpiryYear)
	assert.Equal(t, "12 Main Rd", req.DeliveryAddress)

	coCardExpiry = "0928"
	_, err = checkoutRequest()
	assert.Error(t, err)
}

func TestDescribeCheckoutError(t *testing.T) {
	assert.NoError(t, describeCheckoutError(checkout.ErrCheckoutAborted))
	assert.NoError(t, describeCheckoutError(&checkout.PaymentError{Outcome: payment.OutcomeCancelled}))

	err := describeCheckoutError(&checkout.ValidationError{Field: "deliveryAddress", Reason: "is required"})
	assert.EqualError(t, err, "cannot check out: deliveryAddress is required")

	cause := errors.New("ledger down")
	err = describeCheckoutError(&checkout.PostPaymentOrderCreationError{
		Reference: "cs_1", Amount: decimal.RequireFromString("238.97"), Err: cause,
	})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cs_1")
	assert.Contains(t, err.Error(), "238.97")

	err = describeCheckoutError(&checkout.UnverifiedPaymentError{
		Reference: "ref_u", Amount: decimal.RequireFromString("238.97"), Reason: "verify timed out",
	})
	assert.Contains(t, err.Error(), "ref_u")
	assert.Contains(t, err.Error(), "do not pay again")
}
