package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/bistro/internal/models/cart"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/pkg/logger"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 99

var errQuantityOverflow = &errs.ValidationError{
	Field:   "quantity",
	Message: fmt.Sprintf("must not exceed %d per dish", MaxQuantity),
}

// transactor runs fn in one database transaction.
type transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Catalog provides the dishes a cart may hold.
type Catalog interface {
	GetItem(ctx context.Context, id int) (*menu.Item, error)
}

// Placer turns cart lines into a stored order. *ordering.Service satisfies it.
type Placer interface {
	Snapshot(ctx context.Context, lines []order.Line) ([]order.Line, error)
	// Insert joins the checkout transaction.
	Insert(ctx context.Context, o *order.Order) (*order.Order, error)
	// RecordPlaced runs once the checkout is committed.
	RecordPlaced(ctx context.Context, o *order.Order)
}

// CheckoutDetails are the order fields a cart does not carry.
type CheckoutDetails struct {
	DeliveryDate        *time.Time
	DeliveryAddress     string
	PaymentMethod       string
	SpecialInstructions string
}

type Service struct {
	repo    Repository
	catalog Catalog
	placer  Placer
	trm     transactor
	logger  logger.Logger
}

func NewService(repo Repository, catalog Catalog, placer Placer, trm transactor, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if catalog == nil {
		return nil, errors.New("nil dependency: catalog")
	}
	if placer == nil {
		return nil, errors.New("nil dependency: order placer")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Service{repo: repo, catalog: catalog, placer: placer, trm: trm, logger: logger}, nil
}

// Get returns the user's cart, creating an empty one on first use.
func (s *Service) Get(ctx context.Context, userID int) (*cart.Cart, error) {
	var c *cart.Cart

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.load(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return c, nil
}

// Add puts quantity dishes into the cart. Adding a dish already in the cart raises its quantity.
func (s *Service) Add(ctx context.Context, userID int, item cart.Item) (*cart.Cart, error) {
	if item.Quantity <= 0 || item.Quantity > MaxQuantity {
		return nil, &errs.ValidationError{Field: "quantity", Message: fmt.Sprintf("must be between 1 and %d", MaxQuantity)}
	}

	dish, err := s.catalog.GetItem(ctx, item.MenuItemID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, &errs.ValidationError{Field: "menuItemId", Message: "no such menu item"}
		}
		return nil, fmt.Errorf("get menu item %d: %w", item.MenuItemID, err)
	}
	if !dish.Available {
		return nil, &errs.ValidationError{Field: "menuItemId", Message: "menu item is not available"}
	}

	var c *cart.Cart

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		cartID, err := s.repo.CartID(ctx, userID)
		if err != nil {
			return err
		}
		if _, err = s.repo.AddItem(ctx, cartID, item); err != nil {
			return err
		}
		c, err = s.load(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	return c, nil
}

// SetQuantity changes the quantity of a cart line. A quantity of zero or less removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID, quantity int) (*cart.Cart, error) {
	if quantity > MaxQuantity {
		return nil, &errs.ValidationError{Field: "quantity", Message: fmt.Sprintf("must not exceed %d", MaxQuantity)}
	}

	var c *cart.Cart

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		cartID, err := s.repo.CartID(ctx, userID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			err = s.repo.RemoveItem(ctx, cartID, itemID)
		} else {
			err = s.repo.SetQuantity(ctx, cartID, itemID, quantity)
		}
		if err != nil {
			return err
		}
		c, err = s.load(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	return c, nil
}

// Remove drops one line from the cart.
func (s *Service) Remove(ctx context.Context, userID, itemID int) (*cart.Cart, error) {
	return s.SetQuantity(ctx, userID, itemID, 0)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int) error {
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		cartID, err := s.repo.CartID(ctx, userID)
		if err != nil {
			return err
		}
		return s.repo.Clear(ctx, cartID)
	})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Checkout places an order from the cart and empties the cart in the same transaction.
// Names and prices are taken from the menu at checkout time.
func (s *Service) Checkout(ctx context.Context, userID int, details CheckoutDetails) (*order.Order, error) {
	var placed *order.Order

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		cartID, err := s.repo.CartID(ctx, userID)
		if err != nil {
			return err
		}

		items, err := s.repo.Items(ctx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &errs.ValidationError{Field: "items", Message: "cart is empty"}
		}

		lines := make([]order.Line, 0, len(items))
		for _, item := range items {
			lines = append(lines, order.Line{
				MenuItemID:          item.MenuItemID,
				Quantity:            item.Quantity,
				SpecialInstructions: item.SpecialInstructions,
			})
		}

		lines, err = s.placer.Snapshot(ctx, lines)
		if err != nil {
			return err
		}

		placed, err = s.placer.Insert(ctx, &order.Order{
			UserID:              userID,
			DeliveryDate:        details.DeliveryDate,
			DeliveryAddress:     details.DeliveryAddress,
			PaymentMethod:       details.PaymentMethod,
			SpecialInstructions: details.SpecialInstructions,
			Lines:               lines,
		})
		if err != nil {
			return err
		}

		return s.repo.Clear(ctx, cartID)
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.placer.RecordPlaced(ctx, placed)
	s.logger.With(ctx, "order_id", placed.ID, "user_id", userID).Info("cart checked out")

	return placed, nil
}

func (s *Service) load(ctx context.Context, userID int) (*cart.Cart, error) {
	cartID, err := s.repo.CartID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.Items(ctx, cartID)
	if err != nil {
		return nil, err
	}

	return &cart.Cart{ID: cartID, UserID: userID, Items: items}, nil
}
