package cart

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// UnitTotal is the price of one unit of it: base price plus every modifier.
func UnitTotal(it Item) decimal.Decimal {
	total := it.UnitPrice
	for _, m := range it.Modifiers() {
		total = total.Add(m.Price)
	}
	return total
}

// LineTotal is (unitPrice + Σ modifier.price) × qty. Modifier prices are per
// unit, so they scale with the quantity like the base price does.
func LineTotal(it Item, qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return UnitTotal(it).Mul(decimal.NewFromInt(int64(qty)))
}

// Subtotal sums the line totals of lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// Priced returns a copy of lines with every LineTotal recomputed from the
// item prices, for lines that came from storage or another process.
func Priced(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l.clone()
		out[i].recompute()
	}
	return out
}

// ItemCount sums the quantities of lines.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// MinorUnits converts an amount to the currency's minor unit (cents, kobo),
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
