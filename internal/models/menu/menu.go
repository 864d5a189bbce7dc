package menu

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a dish that can be put into a cart or an order.
type Item struct {
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ID          int             `json:"id"`
	Available   bool            `json:"available"`
	Featured    bool            `json:"featured"`
}
