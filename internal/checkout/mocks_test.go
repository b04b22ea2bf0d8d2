package checkout_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/payment"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Create(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockLedger) Get(ctx context.Context, id string) (order.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(order.Order), args.Error(1)
}

func (m *mockLedger) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *mockLedger) ListAll(ctx context.Context) ([]order.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *mockLedger) UpdateStatus(ctx context.Context, id string, s order.Status) (order.Order, error) {
	args := m.Called(ctx, id, s)
	return args.Get(0).(order.Order), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Checkout(ctx context.Context, amountMinor int64, email string) (payment.GatewayResult, error) {
	args := m.Called(ctx, amountMinor, email)
	return args.Get(0).(payment.GatewayResult), args.Error(1)
}

type mockCards struct{ mock.Mock }

func (m *mockCards) Process(ctx context.Context, ch payment.Charge) (payment.CardResult, error) {
	args := m.Called(ctx, ch)
	return args.Get(0).(payment.CardResult), args.Error(1)
}

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) Confirm(ctx context.Context, s checkout.Summary) (bool, error) {
	args := m.Called(ctx, s)
	return args.Bool(0), args.Error(1)
}
