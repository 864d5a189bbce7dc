package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	PENDING   Status = "PENDING"
	PREPARING Status = "PREPARING"
	READY     Status = "READY"
	DELIVERED Status = "DELIVERED"
	CANCELLED Status = "CANCELLED"
)

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case PENDING, PREPARING, READY, DELIVERED, CANCELLED:
		return true
	}
	return false
}

// Terminal orders accept no further status changes.
func (s Status) Terminal() bool {
	return s == DELIVERED || s == CANCELLED
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// DefaultPaymentMethod is used when the customer does not choose one.
const DefaultPaymentMethod = "CASH"

// Line is an order item. Name and unit price are snapshots taken
// at placement and never follow later menu changes.
type Line struct {
	MenuItemName        string
	SpecialInstructions string
	UnitPrice           decimal.Decimal
	ID                  int
	OrderID             int
	MenuItemID          int
	Quantity            int
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sum adds up the subtotals of lines.
func Sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

type Order struct {
	OrderDate           time.Time
	DeliveryDate        *time.Time
	DeliveryAddress     string
	PaymentMethod       string
	SpecialInstructions string
	Status              Status
	PaymentStatus       PaymentStatus
	Total               decimal.Decimal
	Lines               []Line
	ID                  int
	UserID              int
}

// Stored is an order row as read from the database, before its total is resolved.
// Total is invalid when the column is NULL.
type Stored struct {
	Order
	StoredTotal decimal.NullDecimal
}

// Filter selects orders. Zero values mean "any".
type Filter struct {
	From   time.Time
	To     time.Time
	Status Status
	// Zero matches every user.
	UserID int
	Limit  int
}
