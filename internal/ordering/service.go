package ordering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/bistro/internal/metrics"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
)

// transactor runs fn in one database transaction.
// *manager.Manager from go-transaction-manager satisfies it.
type transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Catalog provides current menu data for snapshotting order lines.
type Catalog interface {
	GetItem(ctx context.Context, id int) (*menu.Item, error)
}

// UpdateParams describes a full update. Nil fields and empty Lines keep the stored values.
type UpdateParams struct {
	DeliveryDate        *time.Time
	DeliveryAddress     *string
	PaymentMethod       *string
	PaymentStatus       *order.PaymentStatus
	Status              *order.Status
	SpecialInstructions *string
	Total               decimal.NullDecimal
	Lines               []order.Line
	ID                  int
}

// Service is the order workflow. Every operation returns orders with a resolved total.
type Service struct {
	repo     Repository
	resolver *Resolver
	catalog  Catalog
	trm      transactor
	logger   logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, resolver *Resolver, catalog Catalog, trm transactor, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if resolver == nil {
		return nil, errors.New("nil dependency: resolver")
	}
	if catalog == nil {
		return nil, errors.New("nil dependency: catalog")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		catalog:  catalog,
		trm:      trm,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Snapshot fills name and unit price of each line from the current menu.
func (s *Service) Snapshot(ctx context.Context, lines []order.Line) ([]order.Line, error) {
	out := make([]order.Line, len(lines))
	for i, l := range lines {
		field := "items[" + strconv.Itoa(i) + "]"

		item, err := s.catalog.GetItem(ctx, l.MenuItemID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, &errs.ValidationError{Field: field + ".menuItemId", Message: "no such menu item"}
			}
			return nil, fmt.Errorf("get menu item %d: %w", l.MenuItemID, err)
		}
		if !item.Available {
			return nil, &errs.ValidationError{Field: field + ".menuItemId", Message: "menu item is not available"}
		}

		l.MenuItemName = item.Name
		l.UnitPrice = item.Price
		out[i] = l
	}
	return out, nil
}

// Place stores a new order together with its lines and records it as placed.
// Lines must carry their snapshots.
func (s *Service) Place(ctx context.Context, o *order.Order) (*order.Order, error) {
	o, err := s.Insert(ctx, o)
	if err != nil {
		return nil, err
	}

	s.RecordPlaced(ctx, o)

	return o, nil
}

// Insert stores a new order together with its lines. It joins the transaction
// in ctx, if any, so callers that commit later call RecordPlaced after the commit.
func (s *Service) Insert(ctx context.Context, o *order.Order) (*order.Order, error) {
	// Defaults.
	if o.Status == "" {
		o.Status = order.PENDING
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = order.PaymentPending
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = s.now()
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		o.PaymentMethod = order.DefaultPaymentMethod
	}

	if err := validateOrder(o); err != nil {
		return nil, err
	}
	if err := validateLines(o.Lines); err != nil {
		return nil, err
	}

	// Resolve before the insert, there is nothing stored yet.
	res := s.resolver.Total(ctx, Input{
		InMemory: decimal.NewNullDecimal(o.Total),
		Lines:    o.Lines,
	})
	o.Total = res.Total

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		id, err := s.repo.CreateOrder(ctx, o)
		if err != nil {
			return err
		}
		o.ID = id
		for i := range o.Lines {
			o.Lines[i].OrderID = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	return o, nil
}

// RecordPlaced counts and logs a committed order.
func (s *Service) RecordPlaced(ctx context.Context, o *order.Order) {
	metrics.OrdersPlaced.Inc()
	s.logger.With(ctx, "order_id", o.ID, "user_id", o.UserID).
		Infof("order placed, total %s", o.Total.StringFixed(2))
}

// UpdateStatus changes the status only. The total is kept as it was resolved before the change.
func (s *Service) UpdateStatus(ctx context.Context, caller *user.User, id int, status order.Status) (*order.Order, error) {
	if !status.Valid() {
		return nil, &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	var out *order.Order

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		stored, err := s.repo.FindOrder(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanManage(stored.UserID) {
			return fmt.Errorf("order %d: %w", id, errs.ErrAccessDenied)
		}

		res := s.resolver.Total(ctx, Input{
			OrderID:   id,
			Persisted: stored.StoredTotal,
			Lines:     stored.Lines,
		})
		stored.Total = res.Total

		if stored.Status == status {
			out = &stored.Order
			return nil
		}
		if err = checkTransition(stored.Status, status); err != nil {
			return err
		}

		if err = s.repo.UpdateStatus(ctx, id, status); err != nil {
			return err
		}

		// Guard against anything that reset the stored total along with the status.
		after, err := s.repo.GetTotal(ctx, id)
		if err != nil {
			return err
		}
		if res.Stale(after) {
			s.logger.With(ctx, "order_id", id).
				Warnf("order total %s lost on status change, restoring %s", after.Decimal.StringFixed(2), res.Total.StringFixed(2))
			if err = s.repo.UpdateTotal(ctx, id, res.Total); err != nil {
				return err
			}
		}

		stored.Status = status
		out = &stored.Order
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update status of order %d: %w", id, err)
	}

	return out, nil
}

// Cancel moves the order to CANCELLED. Cancelling a cancelled order succeeds.
func (s *Service) Cancel(ctx context.Context, caller *user.User, id int) (*order.Order, error) {
	return s.UpdateStatus(ctx, caller, id, order.CANCELLED)
}

// FullUpdate applies params. Omitted lines keep the stored ones. A positive supplied
// total is honoured only for orders without lines, otherwise the lines decide.
func (s *Service) FullUpdate(ctx context.Context, caller *user.User, p UpdateParams) (*order.Order, error) {
	if len(p.Lines) > 0 {
		if err := validateLines(p.Lines); err != nil {
			return nil, err
		}
	}
	if p.Total.Valid && p.Total.Decimal.IsNegative() {
		return nil, &errs.ValidationError{Field: "totalAmount", Message: "must not be negative"}
	}

	var out *order.Order

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		stored, err := s.repo.FindOrder(ctx, p.ID)
		if err != nil {
			return err
		}
		if !caller.CanManage(stored.UserID) {
			return fmt.Errorf("order %d: %w", p.ID, errs.ErrAccessDenied)
		}

		o := stored.Order
		if err = applyParams(&o, p); err != nil {
			return err
		}
		if err = validateOrder(&o); err != nil {
			return err
		}

		lines := stored.Lines
		if len(p.Lines) > 0 {
			lines = p.Lines
		}

		// A supplied total stands in for the stored one.
		persisted := stored.StoredTotal
		if p.Total.Valid && p.Total.Decimal.IsPositive() {
			persisted = p.Total
		}
		res := s.resolver.Total(ctx, Input{
			OrderID:   p.ID,
			InMemory:  stored.StoredTotal,
			Persisted: persisted,
			Lines:     lines,
		})
		o.Total = res.Total

		if err = s.repo.UpdateOrder(ctx, &o); err != nil {
			return err
		}
		if len(p.Lines) > 0 {
			if err = s.repo.ReplaceLines(ctx, p.ID, p.Lines); err != nil {
				return err
			}
		}

		o.Lines = lines
		out = &o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order %d: %w", p.ID, err)
	}

	return out, nil
}

// PermanentDelete removes the order and its lines. Only the owner or an admin may do it.
func (s *Service) PermanentDelete(ctx context.Context, caller *user.User, id int) error {
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		stored, err := s.repo.FindOrder(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanDelete(stored.UserID) {
			return fmt.Errorf("order %d: %w", id, errs.ErrAccessDenied)
		}
		return s.repo.DeleteOrder(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}

	s.logger.With(ctx, "order_id", id, "user_id", caller.ID).Info("order permanently deleted")

	return nil
}

// GetByID returns the order if the caller owns it or is staff.
func (s *Service) GetByID(ctx context.Context, caller *user.User, id int) (*order.Order, error) {
	stored, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(stored.UserID) {
		return nil, fmt.Errorf("order %d: %w", id, errs.ErrAccessDenied)
	}
	return s.resolve(ctx, stored), nil
}

// ListByUser returns the orders of userID. Customers may only list their own.
func (s *Service) ListByUser(ctx context.Context, caller *user.User, userID int) ([]*order.Order, error) {
	if caller == nil {
		return nil, errs.ErrUnauthorized
	}
	if !caller.CanManage(userID) {
		return nil, fmt.Errorf("orders of user %d: %w", userID, errs.ErrAccessDenied)
	}
	return s.list(ctx, order.Filter{UserID: userID})
}

// ListByStatus returns orders in the given status, scoped to the caller unless staff.
func (s *Service) ListByStatus(ctx context.Context, caller *user.User, status order.Status) ([]*order.Order, error) {
	if !status.Valid() {
		return nil, &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return s.scopedList(ctx, caller, order.Filter{Status: status})
}

// ListByDateRange returns orders placed in [from, to), scoped to the caller unless staff.
func (s *Service) ListByDateRange(ctx context.Context, caller *user.User, from, to time.Time) ([]*order.Order, error) {
	if !to.After(from) {
		return nil, &errs.ValidationError{Field: "endDate", Message: "must not be before startDate"}
	}
	return s.scopedList(ctx, caller, order.Filter{From: from, To: to})
}

// ListRecent returns at most limit newest orders, scoped to the caller unless staff.
func (s *Service) ListRecent(ctx context.Context, caller *user.User, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		return nil, &errs.ValidationError{Field: "limit", Message: "must be positive"}
	}
	return s.scopedList(ctx, caller, order.Filter{Limit: limit})
}

// ListAll returns every order for staff and the caller's own orders otherwise.
func (s *Service) ListAll(ctx context.Context, caller *user.User) ([]*order.Order, error) {
	return s.scopedList(ctx, caller, order.Filter{})
}

func (s *Service) scopedList(ctx context.Context, caller *user.User, filter order.Filter) ([]*order.Order, error) {
	filter, err := scope(caller, filter)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	stored, err := s.repo.FindOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*order.Order, 0, len(stored))
	for _, st := range stored {
		orders = append(orders, s.resolve(ctx, st))
	}
	return orders, nil
}

// resolve fixes the total of a freshly read order, healing storage when needed.
func (s *Service) resolve(ctx context.Context, st *order.Stored) *order.Order {
	o := st.Order
	o.Total = s.resolver.Resolve(ctx, Input{
		OrderID:   st.ID,
		Persisted: st.StoredTotal,
		Lines:     st.Lines,
	})
	return &o
}

// scope restricts f to the caller's own orders unless the caller is staff.
func scope(caller *user.User, f order.Filter) (order.Filter, error) {
	if caller == nil {
		return f, errs.ErrUnauthorized
	}
	if !caller.Role.IsElevated() {
		f.UserID = caller.ID
	}
	return f, nil
}

func checkTransition(from, to order.Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s to %s", errs.ErrInvalidTransition, from, to)
	}
	return nil
}

func applyParams(o *order.Order, p UpdateParams) error {
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	if p.DeliveryDate != nil {
		o.DeliveryDate = p.DeliveryDate
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = *p.PaymentMethod
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.SpecialInstructions != nil {
		o.SpecialInstructions = *p.SpecialInstructions
	}
	if p.Status != nil && *p.Status != o.Status {
		if !p.Status.Valid() {
			return &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *p.Status)}
		}
		if err := checkTransition(o.Status, *p.Status); err != nil {
			return err
		}
		o.Status = *p.Status
	}
	return nil
}

func validateOrder(o *order.Order) error {
	switch {
	case o.UserID <= 0:
		return &errs.ValidationError{Field: "userId", Message: "is required"}
	case strings.TrimSpace(o.DeliveryAddress) == "":
		return &errs.ValidationError{Field: "deliveryAddress", Message: "is required"}
	case !o.Status.Valid():
		return &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", o.Status)}
	case !o.PaymentStatus.Valid():
		return &errs.ValidationError{Field: "paymentStatus", Message: fmt.Sprintf("unknown payment status %q", o.PaymentStatus)}
	case o.Total.IsNegative():
		return &errs.ValidationError{Field: "totalAmount", Message: "must not be negative"}
	}
	return nil
}

func validateLines(lines []order.Line) error {
	for i, l := range lines {
		field := "items[" + strconv.Itoa(i) + "]"
		switch {
		case l.MenuItemID <= 0:
			return &errs.ValidationError{Field: field + ".menuItemId", Message: "is required"}
		case l.Quantity <= 0:
			return &errs.ValidationError{Field: field + ".quantity", Message: "must be greater than 0"}
		case strings.TrimSpace(l.MenuItemName) == "":
			return &errs.ValidationError{Field: field + ".menuItemName", Message: "is required"}
		case l.UnitPrice.IsNegative():
			return &errs.ValidationError{Field: field + ".price", Message: "must not be negative"}
		}
	}
	return nil
}
