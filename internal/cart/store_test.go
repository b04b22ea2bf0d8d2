package cart_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func burger() cart.Item {
	return cart.Item{
		ID:        "1",
		Name:      "Classic Burger",
		UnitPrice: dec("89.99"),
		Extras:    []cart.Modifier{{ID: "x1", Name: "Bacon", Price: dec("15.50")}},
	}
}

func TestTotalPrice_WorkedExample(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 2))

	assert.True(t, dec("210.98").Equal(s.TotalPrice()), "got %s", s.TotalPrice())
	assert.Equal(t, 2, s.TotalItemCount())
}

func TestAddLine_ExistingIncrementsQuantity(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 1))
	before := s.TotalItemCount()

	require.NoError(t, s.AddLine(burger(), 3))

	assert.Equal(t, before+3, s.TotalItemCount())
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.True(t, dec("421.96").Equal(lines[0].LineTotal))
}

func TestAddLine_NewInsertsSingleLine(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 1))
	require.NoError(t, s.AddLine(cart.Item{ID: "2", Name: "Cola", UnitPrice: dec("18")}, 1))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "2", lines[1].ID)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestAddLine_RejectsInvalidItem(t *testing.T) {
	s := cart.NewStore()
	assert.ErrorIs(t, s.AddLine(cart.Item{ID: " "}, 1), cart.ErrInvalidItem)
	assert.ErrorIs(t, s.AddLine(cart.Item{ID: "a", UnitPrice: dec("-1")}, 1), cart.ErrInvalidItem)
	assert.Zero(t, s.Len())
}

func TestSetQuantity_NonPositiveRemoves(t *testing.T) {
	for _, qty := range []int{0, -5} {
		t.Run(fmt.Sprint(qty), func(t *testing.T) {
			s := cart.NewStore()
			require.NoError(t, s.AddLine(burger(), 2))
			s.SetQuantity("1", qty)
			assert.Zero(t, s.Len())
			assert.True(t, s.TotalPrice().IsZero())
		})
	}
}

func TestSetQuantity_RecomputesLine(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 2))
	s.SetQuantity("1", 1)
	assert.True(t, dec("105.49").Equal(s.TotalPrice()))
}

func TestClear_IsIdempotent(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 2))

	s.Clear()
	s.Clear()

	assert.True(t, s.TotalPrice().IsZero())
	assert.Zero(t, s.TotalItemCount())
}

func TestMutationsFireEvents(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := cart.NewStore(cart.WithClock(func() time.Time { return at }))
	s.Reset("u1")

	var got []cart.Mutation
	s.OnMutate(func(m cart.Mutation) { got = append(got, m) })

	require.NoError(t, s.AddLine(burger(), 1))
	s.SetQuantity("1", 3)
	s.RemoveLine("missing")
	s.RemoveLine("1")
	s.Clear()

	ops := make([]string, len(got))
	for i, m := range got {
		ops[i] = m.Op
		assert.Equal(t, "u1", m.Owner)
		assert.Equal(t, at, m.At)
	}
	assert.Equal(t, []string{cart.OpAdd, cart.OpSetQuantity, cart.OpRemove, cart.OpClear}, ops)
	assert.Equal(t, at, s.LastMutatedAt())
}

func TestReplaceAndReset_DoNotFireEvents(t *testing.T) {
	s := cart.NewStore()
	fired := 0
	s.OnMutate(func(cart.Mutation) { fired++ })

	s.Reset("u1")
	s.Replace([]cart.Line{
		{Item: burger(), Quantity: 1},
		{Item: burger(), Quantity: 2},
		{Item: cart.Item{ID: "z"}, Quantity: 0},
	}, time.Now())

	assert.Zero(t, fired)
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, dec("316.47").Equal(lines[0].LineTotal))
}

func TestLines_ReturnsDeepCopy(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 1))

	lines := s.Lines()
	lines[0].Quantity = 99
	lines[0].Extras[0].Price = dec("1000")

	assert.True(t, dec("105.49").Equal(s.TotalPrice()))
	assert.True(t, dec("15.50").Equal(s.Lines()[0].Extras[0].Price))
}

// Random sequences of mutations must always keep TotalPrice equal to the
// formula evaluated over the current lines.
func TestTotalPrice_MatchesFormulaOverRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalog := []cart.Item{
		burger(),
		{ID: "2", UnitPrice: dec("18.00"), Drinks: []cart.Modifier{{ID: "d", Price: dec("4.25")}}},
		{ID: "3", UnitPrice: dec("0.99")},
		{ID: "4", UnitPrice: dec("45.10"), Sides: []cart.Modifier{{ID: "s1", Price: dec("12")}, {ID: "s2", Price: dec("7.35")}}},
	}

	for run := 0; run < 50; run++ {
		s := cart.NewStore()
		for step := 0; step < 40; step++ {
			it := catalog[rng.Intn(len(catalog))]
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, s.AddLine(it, rng.Intn(4)+1))
			case 1:
				s.RemoveLine(it.ID)
			case 2:
				s.SetQuantity(it.ID, rng.Intn(8)-3)
			}

			want := decimal.Zero
			count := 0
			for _, l := range s.Lines() {
				unit := l.UnitPrice
				for _, m := range l.Modifiers() {
					unit = unit.Add(m.Price)
				}
				want = want.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
				count += l.Quantity
			}
			require.True(t, want.Equal(s.TotalPrice()), "run %d step %d: want %s got %s", run, step, want, s.TotalPrice())
			require.Equal(t, count, s.TotalItemCount())
		}
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(22097), cart.MinorUnits(dec("220.97")))
	assert.Equal(t, int64(1000), cart.MinorUnits(dec("9.995")))
	assert.Equal(t, int64(0), cart.MinorUnits(decimal.Zero))
}

func TestPriced_RecomputesWithoutTouchingInput(t *testing.T) {
	in := []cart.Line{{Item: burger(), Quantity: 2}}
	out := cart.Priced(in)

	assert.True(t, in[0].LineTotal.IsZero())
	assert.True(t, dec("210.98").Equal(out[0].LineTotal))
	assert.Empty(t, cart.Priced(nil))
}

func TestConsume_KeepsLinesAddedAfterOrder(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 2))
	ordered := s.Lines()

	require.NoError(t, s.AddLine(burger(), 1))
	require.NoError(t, s.AddLine(cart.Item{ID: "2", Name: "Cola", UnitPrice: dec("18")}, 1))

	var ops []string
	s.OnMutate(func(m cart.Mutation) { ops = append(ops, m.Op) })
	s.Consume(ordered)

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.True(t, dec("105.49").Equal(lines[0].LineTotal))
	assert.Equal(t, "2", lines[1].ID)
	assert.Equal(t, []string{cart.OpConsume}, ops)
}

func TestConsume_RemovesFullyOrderedLines(t *testing.T) {
	s := cart.NewStore()
	require.NoError(t, s.AddLine(burger(), 2))
	ordered := s.Lines()
	s.SetQuantity("1", 1)

	s.Consume(ordered)

	assert.Zero(t, s.Len())
	assert.True(t, s.TotalPrice().IsZero())
}
