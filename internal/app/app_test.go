package app_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/config"
	"github.com/shashiranjanraj/cartsync/internal/app"
	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/checkout"
)

func useLocalOnly(t *testing.T) {
	t.Helper()
	settings := map[string]string{
		"LEDGER_DRIVER":       "sql",
		"DB_DRIVER":           "sqlite",
		"DATABASE_DSN":        ":memory:",
		"CART_LOCAL_ROOT":     t.TempDir(),
		"FIRESTORE_PROJECT":   "",
		"REDIS_ADDR":          "",
		"LOG_MONGO_URI":       "",
		"PAYSTACK_SECRET_KEY": "",
	}
	for k, v := range settings {
		prev := config.Get(k, "")
		config.Set(k, v)
		t.Cleanup(func() { config.Set(k, prev) })
	}
}

func TestBoot_LocalOnly(t *testing.T) {
	useLocalOnly(t)
	ctx := context.Background()

	a, err := app.Boot(ctx, app.Options{Carts: true, Ledger: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Firestore)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Watcher)
	require.Len(t, a.Carts.Backends(), 1)
	assert.Equal(t, "local", a.Carts.Backends()[0].Name())

	m, err := a.Migrator()
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx))

	orders, err := a.Ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestBoot_FirestoreLedgerNeedsProject(t *testing.T) {
	useLocalOnly(t)
	config.Set("LEDGER_DRIVER", "firestore")

	_, err := app.Boot(context.Background(), app.Options{Ledger: true})
	assert.Error(t, err)
}

func TestOrchestrator_WithoutPaystackOnlyTakesCash(t *testing.T) {
	useLocalOnly(t)
	ctx := context.Background()
	a, err := app.Boot(ctx, app.Options{Carts: true, Ledger: true})
	require.NoError(t, err)
	defer a.Close()
	m, err := a.Migrator()
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx))

	store := cart.NewStore()
	coord := a.NewCoordinator(store)
	require.NoError(t, coord.SignIn(ctx, "u1"))
	require.NoError(t, store.AddLine(cart.Item{ID: "1", Name: "Cola", UnitPrice: decimal.RequireFromString("9.99")}, 1))

	session := checkout.SessionFunc(func() (checkout.Customer, bool) { return checkout.Customer{ID: "u1"}, true })
	orch := a.NewOrchestrator(store, session, checkout.AlwaysConfirm, nil)

	_, err = orch.PlaceOrder(ctx, checkout.Request{DeliveryAddress: "1 Main Rd", Method: checkout.MethodGateway})
	var ve *checkout.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "paymentMethod", ve.Field)

	res, err := orch.PlaceOrder(ctx, checkout.Request{DeliveryAddress: "1 Main Rd", Method: checkout.MethodCashOnDelivery})
	require.NoError(t, err)
	assert.Equal(t, "19.98", res.Order.TotalAmount.StringFixed(2))
	assert.Zero(t, store.Len())

	require.NoError(t, coord.Close(ctx))
	rec, _, err := a.Carts.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rec.Items)
	assert.False(t, rec.IsActive)
}
