// Package cart holds the in-memory cart and its pricing rules.
//
// The Store is the single source of truth for what the signed-in user is about
// to buy. It never performs I/O: every mutation is announced on the store's
// event bus and persistence is someone else's job.
package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Modifier is a priced add-on (side, drink or extra) selected for a line.
type Modifier struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is what the catalog hands to the cart: a product plus the selected
// modifiers. Two configurations of the same product must use distinct IDs.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	UnitPrice   decimal.Decimal `json:"price"`
	Sides       []Modifier      `json:"selectedSides,omitempty"`
	Drinks      []Modifier      `json:"selectedDrinks,omitempty"`
	Extras      []Modifier      `json:"selectedExtras,omitempty"`
}

// Line is one Item with a quantity and its derived total.
type Line struct {
	Item
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"totalPrice"`
}

// Modifiers returns sides, drinks and extras in that order.
func (it Item) Modifiers() []Modifier {
	out := make([]Modifier, 0, len(it.Sides)+len(it.Drinks)+len(it.Extras))
	out = append(out, it.Sides...)
	out = append(out, it.Drinks...)
	return append(out, it.Extras...)
}

func (it Item) clone() Item {
	cp := it
	cp.ID = strings.TrimSpace(it.ID)
	cp.Sides = cloneModifiers(it.Sides)
	cp.Drinks = cloneModifiers(it.Drinks)
	cp.Extras = cloneModifiers(it.Extras)
	return cp
}

func (l Line) clone() Line {
	cp := l
	cp.Item = l.Item.clone()
	return cp
}

func (l *Line) recompute() {
	l.LineTotal = LineTotal(l.Item, l.Quantity)
}

func cloneModifiers(src []Modifier) []Modifier {
	if len(src) == 0 {
		return nil
	}
	out := make([]Modifier, len(src))
	copy(out, src)
	return out
}
