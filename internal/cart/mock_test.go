package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KretovDmitry/bistro/internal/models/cart"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/shopspring/decimal"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	carts  map[int]int // user id -> cart id
	items  map[int]cart.Item
	owners map[int]int // item id -> cart id
	menu   map[int]*menu.Item

	failClear error

	nextCartID int
	nextItemID int

	mu sync.Mutex
}

var _ Repository = (*mockRepository)(nil)

func newMockRepository(catalog fakeCatalog) *mockRepository {
	return &mockRepository{
		carts:  make(map[int]int),
		items:  make(map[int]cart.Item),
		owners: make(map[int]int),
		menu:   catalog,
	}
}

func (m *mockRepository) CartID(_ context.Context, userID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.carts[userID]; ok {
		return id, nil
	}
	m.nextCartID++
	m.carts[userID] = m.nextCartID
	return m.nextCartID, nil
}

func (m *mockRepository) Items(_ context.Context, cartID int) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cart.Item, 0)
	for id, item := range m.items {
		if m.owners[id] != cartID {
			continue
		}
		dish := m.menu[item.MenuItemID]
		item.MenuItemName = dish.Name
		item.UnitPrice = dish.Price
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) AddItem(_ context.Context, cartID int, item cart.Item) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[item.MenuItemID]; !ok {
		return 0, &errs.ValidationError{Field: "menuItemId", Message: "no such menu item"}
	}
	for id, existing := range m.items {
		if m.owners[id] == cartID && existing.MenuItemID == item.MenuItemID {
			if existing.Quantity+item.Quantity > MaxQuantity {
				return 0, errQuantityOverflow
			}
			existing.Quantity += item.Quantity
			if item.SpecialInstructions != "" {
				existing.SpecialInstructions = item.SpecialInstructions
			}
			m.items[id] = existing
			return id, nil
		}
	}
	m.nextItemID++
	item.ID = m.nextItemID
	item.AddedAt = time.Now()
	m.items[item.ID] = item
	m.owners[item.ID] = cartID
	return item.ID, nil
}

func (m *mockRepository) SetQuantity(_ context.Context, cartID, itemID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || m.owners[itemID] != cartID {
		return fmt.Errorf("cart item %d: %w", itemID, errs.ErrNotFound)
	}
	item.Quantity = quantity
	m.items[itemID] = item
	return nil
}

func (m *mockRepository) RemoveItem(_ context.Context, cartID, itemID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok || m.owners[itemID] != cartID {
		return fmt.Errorf("cart item %d: %w", itemID, errs.ErrNotFound)
	}
	delete(m.items, itemID)
	delete(m.owners, itemID)
	return nil
}

func (m *mockRepository) Clear(_ context.Context, cartID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failClear != nil {
		return m.failClear
	}
	for id := range m.items {
		if m.owners[id] == cartID {
			delete(m.items, id)
			delete(m.owners, id)
		}
	}
	return nil
}

type repoState struct {
	items  map[int]cart.Item
	owners map[int]int
}

func (m *mockRepository) snapshot() repoState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := repoState{items: make(map[int]cart.Item), owners: make(map[int]int)}
	for k, v := range m.items {
		st.items[k] = v
	}
	for k, v := range m.owners {
		st.owners[k] = v
	}
	return st
}

func (m *mockRepository) restore(st repoState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = st.items
	m.owners = st.owners
}

// fakeTransactor rolls the mock repository back when fn fails.
type fakeTransactor struct {
	repo *mockRepository
}

func (f fakeTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	st := f.repo.snapshot()
	if err := fn(ctx); err != nil {
		f.repo.restore(st)
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

func newTestCatalog() fakeCatalog {
	return fakeCatalog{
		1: {ID: 1, Name: "Margherita", Price: decimal.RequireFromString("10.00"), Available: true},
		2: {ID: 2, Name: "Lemonade", Price: decimal.RequireFromString("5.50"), Available: true},
		3: {ID: 3, Name: "Tiramisu", Price: decimal.RequireFromString("6.50")},
	}
}

// fakePlacer snapshots from the catalog and records inserted and announced orders.
type fakePlacer struct {
	catalog  fakeCatalog
	placed   []*order.Order
	recorded []*order.Order
	fail     error
}

var _ Placer = (*fakePlacer)(nil)

func (p *fakePlacer) Snapshot(ctx context.Context, lines []order.Line) ([]order.Line, error) {
	out := make([]order.Line, len(lines))
	for i, l := range lines {
		item, err := p.catalog.GetItem(ctx, l.MenuItemID)
		if err != nil {
			return nil, err
		}
		if !item.Available {
			return nil, &errs.ValidationError{Field: fmt.Sprintf("items[%d].menuItemId", i), Message: "menu item is not available"}
		}
		l.MenuItemName = item.Name
		l.UnitPrice = item.Price
		out[i] = l
	}
	return out, nil
}

func (p *fakePlacer) Insert(_ context.Context, o *order.Order) (*order.Order, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	if o.DeliveryAddress == "" {
		return nil, &errs.ValidationError{Field: "deliveryAddress", Message: "is required"}
	}
	o.ID = len(p.placed) + 1
	o.Status = order.PENDING
	o.Total = order.Sum(o.Lines)
	p.placed = append(p.placed, o)
	return o, nil
}

func (p *fakePlacer) RecordPlaced(_ context.Context, o *order.Order) {
	p.recorded = append(p.recorded, o)
}

var errBoom = errors.New("boom")
