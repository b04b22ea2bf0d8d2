package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/internal/server"
	"github.com/shashiranjanraj/cartsync/pkg/database"
	"github.com/shashiranjanraj/cartsync/pkg/middleware"
	"github.com/shashiranjanraj/cartsync/pkg/migration"
	"github.com/shashiranjanraj/cartsync/pkg/reqid"
	"github.com/shashiranjanraj/cartsync/pkg/storage"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
	Meta    map[string]int    `json:"meta"`
}

type app struct {
	handler http.Handler
	ledger  *order.SQLLedger
	local   *persist.LocalBackend
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migration.New(db, order.Migrations()...).Run(context.Background()))

	var tick atomic.Int64
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := order.NewSQLLedger(db, order.WithSQLClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}))

	disk, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	local := persist.NewLocalBackend(disk)

	r := server.NewRouter(server.Deps{
		Ledger:  ledger,
		Carts:   persist.NewChain(local),
		Limiter: middleware.NewLimiter(1000, time.Minute),
	})
	return &app{handler: r.Handler(), ledger: ledger, local: local}
}

func (a *app) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *app) place(t *testing.T, user string) order.Order {
	t.Helper()
	lines := []cart.Line{{Item: cart.Item{ID: "1", Name: "Classic Burger", UnitPrice: decimal.RequireFromString("89.99")}, Quantity: 1}}
	o := order.Draft(user, lines, decimal.RequireFromString("9.99"), "ZAR")
	o.DeliveryAddress = "1 Main Rd"
	o.PaymentMethod = order.PaymentCashOnDelivery
	require.NoError(t, a.ledger.Create(context.Background(), &o))
	return o
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rec, env := a.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	assert.NotEmpty(t, rec.Header().Get(reqid.Header))
}

func TestMetricsEndpoint(t *testing.T) {
	a := newApp(t)
	a.do(t, http.MethodGet, "/healthz", "")

	rec, _ := a.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cartsync_http_request_duration_seconds")
}

func TestListOrders(t *testing.T) {
	a := newApp(t)
	first := a.place(t, "u1")
	second := a.place(t, "u1")
	a.place(t, "u2")

	rec, env := a.do(t, http.MethodGet, "/api/orders?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []order.Order
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, 2, env.Meta["count"])

	_, env = a.do(t, http.MethodGet, "/api/orders", "")
	assert.Equal(t, 3, env.Meta["count"])
}

func TestListOrders_StatusFilter(t *testing.T) {
	a := newApp(t)
	o := a.place(t, "u1")
	a.place(t, "u1")
	_, err := a.ledger.UpdateStatus(context.Background(), o.ID, order.StatusConfirmed)
	require.NoError(t, err)

	_, env := a.do(t, http.MethodGet, "/api/orders?status=confirmed", "")
	assert.Equal(t, 1, env.Meta["count"])

	rec, env := a.do(t, http.MethodGet, "/api/orders?status=lost", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Errors, "status")
}

func TestShowOrder(t *testing.T) {
	a := newApp(t)
	o := a.place(t, "u1")

	rec, env := a.do(t, http.MethodGet, "/api/orders/"+o.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, decimal.RequireFromString("99.98").Equal(got.TotalAmount))

	rec, _ = a.do(t, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	a := newApp(t)
	o := a.place(t, "u1")
	path := "/api/orders/" + o.ID + "/status"

	rec, env := a.do(t, http.MethodPatch, path, `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got order.Order
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, order.StatusConfirmed, got.Status)

	rec, _ = a.do(t, http.MethodPatch, path, `{"status":"delivered"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = a.do(t, http.MethodPatch, path, `{"status":"teleported"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Errors, "status")

	rec, _ = a.do(t, http.MethodPatch, path, `{"status":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, http.MethodPatch, "/api/orders/missing/status", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShowCart(t *testing.T) {
	a := newApp(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, a.local.Save(context.Background(), "u1", persist.Record{
		Items:     []cart.Line{{Item: cart.Item{ID: "1", UnitPrice: decimal.RequireFromString("18")}, Quantity: 3}},
		UpdatedAt: at,
		IsActive:  true,
	}))

	rec, env := a.do(t, http.MethodGet, "/api/carts/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ItemCount int             `json:"itemCount"`
		Subtotal  decimal.Decimal `json:"subtotal"`
		Source    string          `json:"source"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 3, got.ItemCount)
	assert.True(t, decimal.RequireFromString("54").Equal(got.Subtotal))
	assert.Equal(t, "local", got.Source)
	assert.True(t, at.Equal(got.UpdatedAt))

	rec, _ = a.do(t, http.MethodGet, "/api/carts/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migration.New(db, order.Migrations()...).Run(context.Background()))

	h := server.NewRouter(server.Deps{
		Ledger:  order.NewSQLLedger(db),
		Limiter: middleware.NewLimiter(2, time.Minute),
	}).Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// health checks are not rate limited
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartRoutesAbsentWithoutLoader(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	r := server.NewRouter(server.Deps{Ledger: order.NewSQLLedger(db)})
	_, ok := r.Path("carts.show")
	assert.False(t, ok)
	_, ok = r.Path("orders.status")
	assert.True(t, ok)
}
