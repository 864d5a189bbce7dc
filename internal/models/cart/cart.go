package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a cart line with the menu data it was priced with.
type Item struct {
	AddedAt             time.Time
	MenuItemName        string
	SpecialInstructions string
	UnitPrice           decimal.Decimal
	ID                  int
	MenuItemID          int
	Quantity            int
}

// Subtotal is UnitPrice × Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart belongs to exactly one user.
type Cart struct {
	Items  []Item
	ID     int
	UserID int
}

// Total sums all subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, i := range c.Items {
		total = total.Add(i.Subtotal())
	}
	return total
}

// Count is the number of dishes in the cart.
func (c Cart) Count() int {
	n := 0
	for _, i := range c.Items {
		n += i.Quantity
	}
	return n
}
