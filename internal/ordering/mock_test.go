package ordering

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	orders    map[int]order.Stored
	lines     map[int][]order.Line
	overrides map[int]decimal.Decimal

	// Simulates a storage layer that drops the total along with a status write.
	resetTotalOnStatus bool
	failUpdateTotal    error
	failCreate         error

	nextID      int
	nextLineID  int
	totalWrites int

	mu sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:    make(map[int]order.Stored),
		lines:     make(map[int][]order.Line),
		overrides: make(map[int]decimal.Decimal),
	}
}

// seed stores o as is. A nil total is stored as NULL.
func (m *mockRepository) seed(o order.Order, total *decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := order.Stored{Order: o}
	st.Lines = nil
	if total != nil {
		st.StoredTotal = decimal.NewNullDecimal(*total)
	}
	m.orders[o.ID] = st
	for _, l := range o.Lines {
		m.nextLineID++
		if l.ID == 0 {
			l.ID = m.nextLineID
		}
		l.OrderID = o.ID
		m.lines[o.ID] = append(m.lines[o.ID], l)
	}
	m.nextID = max(m.nextID, o.ID)
}

func (m *mockRepository) storedTotal(id int) decimal.NullDecimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id].StoredTotal
}

func (m *mockRepository) lineCount(id int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines[id])
}

func (m *mockRepository) writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalWrites
}

// snapshot returns a function that restores the current state.
func (m *mockRepository) snapshot() func() {
	m.mu.RLock()
	orders := make(map[int]order.Stored, len(m.orders))
	for k, v := range m.orders {
		orders[k] = v
	}
	lines := make(map[int][]order.Line, len(m.lines))
	for k, v := range m.lines {
		lines[k] = append([]order.Line(nil), v...)
	}
	nextID, nextLineID := m.nextID, m.nextLineID
	m.mu.RUnlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.orders, m.lines = orders, lines
		m.nextID, m.nextLineID = nextID, nextLineID
	}
}

func (m *mockRepository) FindOrder(_ context.Context, id int) (*order.Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	st.Lines = append([]order.Line(nil), m.lines[id]...)
	return &st, nil
}

func (m *mockRepository) FindOrders(_ context.Context, f order.Filter) ([]*order.Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*order.Stored, 0)
	for id := 1; id <= m.nextID; id++ {
		st, ok := m.orders[id]
		if !ok {
			continue
		}
		if f.UserID != 0 && st.UserID != f.UserID {
			continue
		}
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && st.OrderDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !st.OrderDate.Before(f.To) {
			continue
		}
		st.Lines = append([]order.Line(nil), m.lines[id]...)
		out = append(out, &st)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockRepository) CreateOrder(_ context.Context, o *order.Order) (int, error) {
	if m.failCreate != nil {
		return 0, m.failCreate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	st := order.Stored{Order: *o, StoredTotal: decimal.NewNullDecimal(o.Total)}
	st.ID = m.nextID
	st.Lines = nil
	m.orders[st.ID] = st
	for i := range o.Lines {
		m.nextLineID++
		o.Lines[i].ID = m.nextLineID
		o.Lines[i].OrderID = st.ID
		m.lines[st.ID] = append(m.lines[st.ID], o.Lines[i])
	}
	return st.ID, nil
}

func (m *mockRepository) UpdateOrder(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; !ok {
		return fmt.Errorf("order %d: %w", o.ID, errs.ErrNotFound)
	}
	st := order.Stored{Order: *o, StoredTotal: decimal.NewNullDecimal(o.Total)}
	st.Lines = nil
	m.orders[o.ID] = st
	return nil
}

func (m *mockRepository) ReplaceLines(_ context.Context, orderID int, lines []order.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines[orderID] = nil
	for i := range lines {
		m.nextLineID++
		lines[i].ID = m.nextLineID
		lines[i].OrderID = orderID
		m.lines[orderID] = append(m.lines[orderID], lines[i])
	}
	return nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int, status order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	st.Status = status
	if m.resetTotalOnStatus {
		st.StoredTotal = decimal.NullDecimal{}
	}
	m.orders[id] = st
	return nil
}

func (m *mockRepository) GetTotal(_ context.Context, id int) (decimal.NullDecimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.orders[id]
	if !ok {
		return decimal.NullDecimal{}, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	return st.StoredTotal, nil
}

func (m *mockRepository) UpdateTotal(_ context.Context, id int, total decimal.Decimal) error {
	if m.failUpdateTotal != nil {
		return m.failUpdateTotal
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	st.StoredTotal = decimal.NewNullDecimal(total)
	m.orders[id] = st
	m.totalWrites++
	return nil
}

func (m *mockRepository) DeleteOrder(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	delete(m.lines, id)
	delete(m.orders, id)
	return nil
}

func (m *mockRepository) LookupOverride(_ context.Context, orderID int) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, ok := m.overrides[orderID]
	return total, ok, nil
}

// fakeTransactor rolls the mock repository back when fn fails.
type fakeTransactor struct {
	repo  *mockRepository
	calls int
	mu    sync.Mutex
}

func (f *fakeTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	restore := f.repo.snapshot()
	if err := fn(ctx); err != nil {
		restore()
		return err
	}
	return nil
}

type fakeCatalog map[int]*menu.Item

func (c fakeCatalog) GetItem(_ context.Context, id int) (*menu.Item, error) {
	item, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("menu item %d: %w", id, errs.ErrNotFound)
	}
	return item, nil
}

var testCatalog = fakeCatalog{
	1: {ID: 1, Name: "Margherita", Price: decimal.RequireFromString("10.00"), Available: true},
	2: {ID: 2, Name: "Lemonade", Price: decimal.RequireFromString("5.50"), Available: true},
	3: {ID: 3, Name: "Tiramisu", Price: decimal.RequireFromString("7.25"), Available: false},
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newObservedLogger(level zapcore.Level) (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logger.NewWithZap(zap.New(core)), logs
}

type testEnv struct {
	repo     *mockRepository
	trm      *fakeTransactor
	resolver *Resolver
	service  *Service
	logs     *observer.ObservedLogs
}

func newTestEnv(t *testing.T, configured MapOverrides) *testEnv {
	t.Helper()

	repo := newMockRepository()
	l, logs := newObservedLogger(zapcore.DebugLevel)

	resolver, err := NewResolver(ChainOverrides{configured, repo}, repo, l)
	require.NoError(t, err)

	tx := &fakeTransactor{repo: repo}
	service, err := NewService(repo, resolver, testCatalog, tx, l)
	require.NoError(t, err)

	return &testEnv{repo: repo, trm: tx, resolver: resolver, service: service, logs: logs}
}
