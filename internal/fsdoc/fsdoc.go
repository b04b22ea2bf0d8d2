// Package fsdoc maps cart lines to and from Firestore documents.
//
// Firestore stores numbers as float64, so money crosses this boundary as
// float and is turned back into decimals on read.
package fsdoc

import (
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

type Line struct {
	ID             string     `firestore:"id"`
	Name           string     `firestore:"name"`
	Description    string     `firestore:"description,omitempty"`
	Image          string     `firestore:"image,omitempty"`
	Price          float64    `firestore:"price"`
	Quantity       int        `firestore:"quantity"`
	TotalPrice     float64    `firestore:"totalPrice"`
	SelectedSides  []Modifier `firestore:"selectedSides,omitempty"`
	SelectedDrinks []Modifier `firestore:"selectedDrinks,omitempty"`
	SelectedExtras []Modifier `firestore:"selectedExtras,omitempty"`
}

type Modifier struct {
	ID    string  `firestore:"id"`
	Name  string  `firestore:"name"`
	Price float64 `firestore:"price"`
}

func FromLines(lines []cart.Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{
			ID:             l.ID,
			Name:           l.Name,
			Description:    l.Description,
			Image:          l.Image,
			Price:          l.UnitPrice.InexactFloat64(),
			Quantity:       l.Quantity,
			TotalPrice:     l.LineTotal.InexactFloat64(),
			SelectedSides:  fromModifiers(l.Sides),
			SelectedDrinks: fromModifiers(l.Drinks),
			SelectedExtras: fromModifiers(l.Extras),
		})
	}
	return out
}

func ToLines(docs []Line) []cart.Line {
	out := make([]cart.Line, 0, len(docs))
	for _, d := range docs {
		out = append(out, cart.Line{
			Item: cart.Item{
				ID:          d.ID,
				Name:        d.Name,
				Description: d.Description,
				Image:       d.Image,
				UnitPrice:   Money(d.Price),
				Sides:       toModifiers(d.SelectedSides),
				Drinks:      toModifiers(d.SelectedDrinks),
				Extras:      toModifiers(d.SelectedExtras),
			},
			Quantity:  d.Quantity,
			LineTotal: Money(d.TotalPrice),
		})
	}
	return out
}

// Money converts a stored float to a decimal rounded to cents.
func Money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func fromModifiers(src []cart.Modifier) []Modifier {
	if len(src) == 0 {
		return nil
	}
	out := make([]Modifier, len(src))
	for i, m := range src {
		out[i] = Modifier{ID: m.ID, Name: m.Name, Price: m.Price.InexactFloat64()}
	}
	return out
}

func toModifiers(src []Modifier) []cart.Modifier {
	if len(src) == 0 {
		return nil
	}
	out := make([]cart.Modifier, len(src))
	for i, m := range src {
		out[i] = cart.Modifier{ID: m.ID, Name: m.Name, Price: Money(m.Price)}
	}
	return out
}
