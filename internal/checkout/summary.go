package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"ZAR": "R",
	"NGN": "₦",
	"GHS": "GH₵",
	"KES": "KSh",
	"USD": "$",
}

// Summary is what the customer confirms before anything is charged.
type Summary struct {
	ItemCount   int
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	Address     string
	Method      Method
	MethodLabel string
}

func (s Summary) money(d decimal.Decimal) string {
	cur := strings.ToUpper(s.Currency)
	if sym, ok := currencySymbols[cur]; ok {
		return sym + d.StringFixed(2)
	}
	return strings.TrimSpace(cur + " " + d.StringFixed(2))
}

// String renders the confirmation text shown to the customer.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Items: %d\n", s.ItemCount)
	fmt.Fprintf(&b, "Subtotal: %s\n", s.money(s.Subtotal))
	fmt.Fprintf(&b, "Delivery fee: %s\n", s.money(s.DeliveryFee))
	fmt.Fprintf(&b, "Total: %s\n", s.money(s.Total))
	fmt.Fprintf(&b, "Delivery: %s\n", s.Address)
	fmt.Fprintf(&b, "Payment: %s", s.MethodLabel)
	return b.String()
}
