package ordering

import (
	"context"
	"errors"

	"github.com/KretovDmitry/bistro/internal/metrics"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
)

// Source tells which tier produced a resolved total.
type Source string

const (
	SourceLines     Source = "lines"
	SourcePersisted Source = "persisted"
	SourceInMemory  Source = "in_memory"
	SourceOverride  Source = "override"
	SourceZero      Source = "zero"
)

// Input is everything known about an order total at resolution time.
// OrderID is zero for orders that are not stored yet.
type Input struct {
	InMemory  decimal.NullDecimal
	Persisted decimal.NullDecimal
	Lines     []order.Line
	OrderID   int
}

// Resolution is the authoritative total and the tier it came from.
type Resolution struct {
	Total  decimal.Decimal
	Source Source
}

// Stale reports whether stored must be rewritten to hold the resolution.
// Totals derived from lines or overrides replace any differing value,
// preserved totals only replace a missing or zero one.
func (r Resolution) Stale(stored decimal.NullDecimal) bool {
	switch r.Source {
	case SourceLines, SourceOverride:
		return !stored.Valid || !stored.Decimal.Equal(r.Total)
	case SourcePersisted, SourceInMemory:
		return !stored.Valid || !stored.Decimal.IsPositive()
	}
	return false
}

// TotalWriter stores a corrected total.
type TotalWriter interface {
	UpdateTotal(ctx context.Context, orderID int, total decimal.Decimal) error
}

// Resolver decides the authoritative total of an order. Precedence:
// positive sum of lines, positive persisted total, positive in-memory total,
// manual override, zero.
type Resolver struct {
	overrides Overrides
	writer    TotalWriter
	logger    logger.Logger
}

func NewResolver(overrides Overrides, writer TotalWriter, logger logger.Logger) (*Resolver, error) {
	if writer == nil {
		return nil, errors.New("nil dependency: total writer")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Resolver{overrides: overrides, writer: writer, logger: logger}, nil
}

// Total resolves without writing anything.
func (r *Resolver) Total(ctx context.Context, in Input) Resolution {
	res := r.decide(ctx, in)
	metrics.TotalResolutions.WithLabelValues(string(res.Source)).Inc()
	return res
}

func (r *Resolver) decide(ctx context.Context, in Input) Resolution {
	if len(in.Lines) > 0 {
		if computed := order.Sum(in.Lines); computed.IsPositive() {
			return Resolution{Total: computed.Round(2), Source: SourceLines}
		}
	}

	if in.Persisted.Valid {
		if total := in.Persisted.Decimal.Round(2); total.IsPositive() {
			return Resolution{Total: total, Source: SourcePersisted}
		}
	}

	if in.InMemory.Valid {
		if total := in.InMemory.Decimal.Round(2); total.IsPositive() {
			return Resolution{Total: total, Source: SourceInMemory}
		}
	}

	if in.OrderID > 0 && r.overrides != nil {
		total, found, err := r.overrides.LookupOverride(ctx, in.OrderID)
		if err != nil {
			r.logger.With(ctx, "order_id", in.OrderID).Warnf("lookup total override: %s", err)
		}
		if found && total.IsPositive() {
			return Resolution{Total: total.Round(2), Source: SourceOverride}
		}
	}

	return Resolution{Total: decimal.Zero, Source: SourceZero}
}

// Resolve returns the authoritative total and, when it came from lines or an override
// and differs from storage, writes it back. Write failures are logged and do not
// change the result. Call it outside transactions, on read paths only.
func (r *Resolver) Resolve(ctx context.Context, in Input) decimal.Decimal {
	res := r.Total(ctx, in)

	if in.OrderID <= 0 {
		return res.Total
	}
	if res.Source != SourceLines && res.Source != SourceOverride {
		return res.Total
	}
	if !res.Stale(in.Persisted) {
		return res.Total
	}

	if err := r.writer.UpdateTotal(ctx, in.OrderID, res.Total); err != nil {
		metrics.TotalHeals.WithLabelValues("failed").Inc()
		r.logger.With(ctx, "order_id", in.OrderID, "source", res.Source).
			Errorf("heal order total: %s", err)
		return res.Total
	}

	metrics.TotalHeals.WithLabelValues("ok").Inc()
	r.logger.With(ctx, "order_id", in.OrderID, "source", res.Source).
		Infof("order total healed to %s", res.Total.StringFixed(2))

	return res.Total
}
