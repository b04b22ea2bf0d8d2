package persist

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

func TestReceive_DropsSnapshotsFromEarlierEpoch(t *testing.T) {
	store := cart.NewStore()
	c := New(store, NewChain(), nil)
	defer c.Close(context.Background())

	require.NoError(t, c.SignIn(context.Background(), "u1"))
	old := c.Epoch()
	require.NoError(t, c.SignIn(context.Background(), "u2"))

	late := Snapshot{Exists: true, Record: Record{Items: []cart.Line{
		{Item: cart.Item{ID: "leak", UnitPrice: decimal.NewFromInt(1)}, Quantity: 1},
	}}}
	c.receive(old, "u1", late)

	assert.Zero(t, store.Len())
	assert.Equal(t, "u2", store.Owner())

	c.receive(c.Epoch(), "u2", late)
	assert.Equal(t, 1, store.Len())
}
