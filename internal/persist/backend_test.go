package persist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/pkg/storage"
)

func TestLocalBackend_RoundTrip(t *testing.T) {
	disk, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	b := persist.NewLocalBackend(disk)
	ctx := context.Background()

	_, err = b.Load(ctx, "u1")
	assert.ErrorIs(t, err, persist.ErrNotFound)

	in := record(cart.Line{
		Item: cart.Item{
			ID:        "1",
			UnitPrice: decimal.RequireFromString("89.99"),
			Extras:    []cart.Modifier{{ID: "x", Name: "Bacon", Price: decimal.RequireFromString("15.50")}},
		},
		Quantity:  2,
		LineTotal: decimal.RequireFromString("210.98"),
	})
	require.NoError(t, b.Save(ctx, "u1", in))

	out, err := b.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	assert.True(t, out.IsActive)
	assert.True(t, decimal.RequireFromString("210.98").Equal(out.Items[0].LineTotal))
	assert.Equal(t, "Bacon", out.Items[0].Extras[0].Name)

	_, err = disk.Get("cart:u1.json")
	assert.NoError(t, err)
}

func TestLocalBackend_AcceptsLegacyArray(t *testing.T) {
	disk, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, disk.Put("cart:u1.json", []byte(`[{"id":"1","name":"Burger","price":"50","quantity":2,"totalPrice":"100"}]`)))

	rec, err := persist.NewLocalBackend(disk).Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, 2, rec.Items[0].Quantity)
	assert.True(t, rec.IsActive)
}

func TestLocalBackend_CorruptFileIsAnError(t *testing.T) {
	disk, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, disk.Put("cart:u1.json", []byte(`{not json`)))

	_, err = persist.NewLocalBackend(disk).Load(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, persist.ErrNotFound))
}

func TestChain_LoadReportsAttempts(t *testing.T) {
	a := newMem("a", persist.KindRemote)
	a.loadErr = errors.New("boom")
	b := newMem("b", persist.KindLocal)
	c := newMem("c", persist.KindLocal)
	c.put("u1", record())

	_, attempts, err := persist.NewChain(a, b, c).Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, attempts, 3)

	var be *persist.BackendError
	require.ErrorAs(t, attempts[0].Err, &be)
	assert.Equal(t, "a", be.Backend)
	assert.ErrorIs(t, attempts[1].Err, persist.ErrNotFound)
	assert.NoError(t, attempts[2].Err)
}

func TestChain_LoadErrors(t *testing.T) {
	empty := newMem("empty", persist.KindLocal)
	_, _, err := persist.NewChain(empty).Load(context.Background(), "u1")
	assert.ErrorIs(t, err, persist.ErrNotFound)

	broken := newMem("broken", persist.KindRemote)
	broken.loadErr = errors.New("boom")
	_, _, err = persist.NewChain(broken, empty).Load(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, persist.ErrNotFound))
}

func TestSanitizer(t *testing.T) {
	s := persist.NewSanitizer("blob:", " Data: ")
	assert.True(t, s.SessionLocal("blob:http://localhost/abc"))
	assert.True(t, s.SessionLocal("data:image/png;base64,AAA"))
	assert.False(t, s.SessionLocal("https://cdn/x.png"))

	in := []cart.Line{{Item: cart.Item{ID: "1", Image: "blob:x"}}}
	out, n := s.Lines(in)
	assert.Equal(t, 1, n)
	assert.Empty(t, out[0].Image)
	assert.Equal(t, "blob:x", in[0].Image)
}
