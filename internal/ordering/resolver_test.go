package ordering

import (
	"context"
	"errors"
	"testing"

	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func line(price string, qty int) order.Line {
	return order.Line{MenuItemID: 1, MenuItemName: "dish", UnitPrice: dec(price), Quantity: qty}
}

func TestResolverPrecedence(t *testing.T) {
	configured := MapOverrides{7: dec("600.00")}

	tests := []struct {
		name       string
		in         Input
		wantTotal  string
		wantSource Source
	}{
		{
			name: "lines beat every other tier",
			in: Input{
				OrderID:   7,
				InMemory:  decimal.NewNullDecimal(dec("99.00")),
				Persisted: decimal.NewNullDecimal(dec("12.00")),
				Lines:     []order.Line{line("10.00", 2), line("5.50", 1)},
			},
			wantTotal:  "25.50",
			wantSource: SourceLines,
		},
		{
			name: "persisted beats in-memory and override",
			in: Input{
				OrderID:   7,
				InMemory:  decimal.NewNullDecimal(dec("99.00")),
				Persisted: decimal.NewNullDecimal(dec("42.50")),
			},
			wantTotal:  "42.50",
			wantSource: SourcePersisted,
		},
		{
			name: "persisted only",
			in: Input{
				OrderID:   8,
				Persisted: decimal.NewNullDecimal(dec("42.50")),
			},
			wantTotal:  "42.50",
			wantSource: SourcePersisted,
		},
		{
			name: "zero lines fall through to persisted",
			in: Input{
				OrderID:   8,
				Persisted: decimal.NewNullDecimal(dec("18.00")),
				Lines:     []order.Line{line("0.00", 3)},
			},
			wantTotal:  "18.00",
			wantSource: SourcePersisted,
		},
		{
			name: "in-memory beats override",
			in: Input{
				OrderID:   7,
				InMemory:  decimal.NewNullDecimal(dec("99.00")),
				Persisted: decimal.NewNullDecimal(decimal.Zero),
			},
			wantTotal:  "99.00",
			wantSource: SourceInMemory,
		},
		{
			name:       "override when nothing else is positive",
			in:         Input{OrderID: 7},
			wantTotal:  "600.00",
			wantSource: SourceOverride,
		},
		{
			name:       "unsaved order never consults overrides",
			in:         Input{OrderID: 0},
			wantTotal:  "0.00",
			wantSource: SourceZero,
		},
		{
			name: "zero fallback",
			in: Input{
				OrderID:   9,
				Persisted: decimal.NewNullDecimal(decimal.Zero),
			},
			wantTotal:  "0.00",
			wantSource: SourceZero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, configured)

			res := env.resolver.Total(context.Background(), tt.in)

			assert.Equal(t, tt.wantTotal, res.Total.StringFixed(2))
			assert.Equal(t, tt.wantSource, res.Source)
			assert.Zero(t, env.repo.writes(), "Total must never write")
		})
	}
}

func TestResolverRoundsEveryTier(t *testing.T) {
	env := newTestEnv(t, MapOverrides{5: dec("7.005")})
	ctx := context.Background()

	res := env.resolver.Total(ctx, Input{OrderID: 1, Persisted: decimal.NewNullDecimal(dec("12.345"))})
	assert.Equal(t, SourcePersisted, res.Source)
	assert.Equal(t, "12.35", res.Total.String())

	res = env.resolver.Total(ctx, Input{InMemory: decimal.NewNullDecimal(dec("3.3333"))})
	assert.Equal(t, SourceInMemory, res.Source)
	assert.Equal(t, "3.33", res.Total.String())

	res = env.resolver.Total(ctx, Input{OrderID: 5})
	assert.Equal(t, SourceOverride, res.Source)
	assert.Equal(t, "7.01", res.Total.String())

	res = env.resolver.Total(ctx, Input{OrderID: 6, Persisted: decimal.NewNullDecimal(dec("0.004"))})
	assert.Equal(t, SourceZero, res.Source, "a total that rounds to zero is not positive")
}

func TestResolverTableOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.seed(order.Order{ID: 3, UserID: 1, Status: order.PENDING}, nil)
	env.repo.overrides[3] = dec("300.00")

	got := env.resolver.Resolve(context.Background(), Input{OrderID: 3})

	assert.Equal(t, "300.00", got.StringFixed(2))
	total := env.repo.storedTotal(3)
	require.True(t, total.Valid, "override must be persisted")
	assert.Equal(t, "300.00", total.Decimal.StringFixed(2))
}

func TestResolverIdempotentWithHeal(t *testing.T) {
	env := newTestEnv(t, nil)

	ls := []order.Line{line("10.00", 2), line("5.50", 1)}
	stale := dec("12.00")
	env.repo.seed(order.Order{ID: 1, UserID: 1, Status: order.PENDING, Lines: ls}, &stale)

	ctx := context.Background()

	read := func() decimal.Decimal {
		st, err := env.repo.FindOrder(ctx, 1)
		require.NoError(t, err)
		return env.resolver.Resolve(ctx, Input{OrderID: 1, Persisted: st.StoredTotal, Lines: st.Lines})
	}

	first := read()
	second := read()

	assert.Equal(t, "25.50", first.StringFixed(2))
	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, env.repo.writes(), "only the first resolution heals")
	assert.Equal(t, "25.50", env.repo.storedTotal(1).Decimal.StringFixed(2))
}

func TestResolverIdempotentOverride(t *testing.T) {
	env := newTestEnv(t, MapOverrides{5: dec("15.99")})
	env.repo.seed(order.Order{ID: 5, UserID: 1, Status: order.PENDING}, nil)

	ctx := context.Background()
	first := env.resolver.Resolve(ctx, Input{OrderID: 5, Persisted: env.repo.storedTotal(5)})
	second := env.resolver.Resolve(ctx, Input{OrderID: 5, Persisted: env.repo.storedTotal(5)})

	assert.Equal(t, "15.99", first.StringFixed(2))
	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, env.repo.writes())
}

func TestResolverHealFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.seed(order.Order{ID: 1, UserID: 1, Status: order.PENDING, Lines: []order.Line{line("10.00", 3)}}, nil)
	env.repo.failUpdateTotal = errors.New("connection reset")

	got := env.resolver.Resolve(context.Background(), Input{OrderID: 1, Lines: []order.Line{line("10.00", 3)}})

	assert.Equal(t, "30.00", got.StringFixed(2))
	failures := env.logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessageSnippet("connection reset")
	assert.Equal(t, 1, failures.Len(), "heal failure must be logged")
}

func TestResolverNoHealWhenInSync(t *testing.T) {
	env := newTestEnv(t, nil)
	total := dec("30")
	env.repo.seed(order.Order{ID: 1, UserID: 1, Status: order.PENDING, Lines: []order.Line{line("10.00", 3)}}, &total)

	got := env.resolver.Resolve(context.Background(), Input{
		OrderID:   1,
		Persisted: decimal.NewNullDecimal(total),
		Lines:     []order.Line{line("10.00", 3)},
	})

	assert.Equal(t, "30.00", got.StringFixed(2))
	assert.Zero(t, env.repo.writes(), "30 and 30.00 are the same amount")
}

type failingOverrides struct{}

func (failingOverrides) LookupOverride(context.Context, int) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, errors.New("table is gone")
}

func TestChainOverrides(t *testing.T) {
	ctx := context.Background()

	chain := ChainOverrides{failingOverrides{}, MapOverrides{1: dec("0")}, MapOverrides{1: dec("500")}}
	total, found, err := chain.LookupOverride(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "500.00", total.StringFixed(2))

	_, found, err = chain.LookupOverride(ctx, 2)
	assert.False(t, found)
	assert.Error(t, err, "a failing source is reported when nothing answers")

	_, found, err = ChainOverrides{nil, MapOverrides{}}.LookupOverride(ctx, 2)
	assert.False(t, found)
	assert.NoError(t, err)
}

func TestResolverOverrideLookupErrorIsLogged(t *testing.T) {
	repo := newMockRepository()
	l, logs := newObservedLogger(zapcore.WarnLevel)
	resolver, err := NewResolver(failingOverrides{}, repo, l)
	require.NoError(t, err)

	res := resolver.Total(context.Background(), Input{OrderID: 4})

	assert.Equal(t, SourceZero, res.Source)
	assert.Equal(t, 1, logs.FilterMessageSnippet("table is gone").Len())
}

func TestResolutionStale(t *testing.T) {
	tests := []struct {
		name   string
		res    Resolution
		stored decimal.NullDecimal
		want   bool
	}{
		{"lines differ", Resolution{dec("25.50"), SourceLines}, decimal.NewNullDecimal(dec("12")), true},
		{"lines equal", Resolution{dec("25.50"), SourceLines}, decimal.NewNullDecimal(dec("25.5")), false},
		{"lines vs null", Resolution{dec("25.50"), SourceLines}, decimal.NullDecimal{}, true},
		{"persisted reset to null", Resolution{dec("42.50"), SourcePersisted}, decimal.NullDecimal{}, true},
		{"persisted reset to zero", Resolution{dec("42.50"), SourcePersisted}, decimal.NewNullDecimal(decimal.Zero), true},
		{"persisted changed by someone else", Resolution{dec("42.50"), SourcePersisted}, decimal.NewNullDecimal(dec("50")), false},
		{"zero never stale", Resolution{decimal.Zero, SourceZero}, decimal.NullDecimal{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Stale(tt.stored))
		})
	}
}

func TestNewResolverNilDependencies(t *testing.T) {
	_, err := NewResolver(nil, nil, logger.NewNop())
	assert.Error(t, err)

	_, err = NewResolver(nil, newMockRepository(), nil)
	assert.Error(t, err)
}
