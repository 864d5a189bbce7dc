package ordering

import (
	"context"

	"github.com/shopspring/decimal"
)

// Overrides looks up a manually maintained total for an order.
// Found is false when there is no entry.
type Overrides interface {
	LookupOverride(ctx context.Context, orderID int) (total decimal.Decimal, found bool, err error)
}

// MapOverrides is a fixed set of totals, usually loaded from the configuration.
type MapOverrides map[int]decimal.Decimal

var _ Overrides = MapOverrides(nil)

func (m MapOverrides) LookupOverride(_ context.Context, orderID int) (decimal.Decimal, bool, error) {
	total, found := m[orderID]
	return total, found, nil
}

// ChainOverrides asks each source in order and returns the first positive total.
// A failing source is reported only if no later source has an answer.
type ChainOverrides []Overrides

var _ Overrides = ChainOverrides(nil)

func (c ChainOverrides) LookupOverride(ctx context.Context, orderID int) (decimal.Decimal, bool, error) {
	var firstErr error
	for _, o := range c {
		if o == nil {
			continue
		}
		total, found, err := o.LookupOverride(ctx, orderID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found && total.IsPositive() {
			return total, true, nil
		}
	}
	return decimal.Zero, false, firstErr
}
