package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/bistro/internal/models/cart"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	// CartID returns the id of the user's cart, creating the cart on first use.
	CartID(ctx context.Context, userID int) (int, error)
	Items(ctx context.Context, cartID int) ([]cart.Item, error)
	// AddItem merges the quantity into an existing line of the same dish,
	// failing with a quantity ValidationError when the sum exceeds MaxQuantity.
	AddItem(ctx context.Context, cartID int, item cart.Item) (int, error)
	SetQuantity(ctx context.Context, cartID, itemID, quantity int) error
	RemoveItem(ctx context.Context, cartID, itemID int) error
	Clear(ctx context.Context, cartID int) error
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) CartID(ctx context.Context, userID int) (int, error) {
	const query = `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&id)
	if err != nil {
		return 0, errs.Storage("get cart", err)
	}

	return id, nil
}

func (r *Repo) Items(ctx context.Context, cartID int) ([]cart.Item, error) {
	const query = `
		SELECT ci.id, ci.menu_item_id, m.name, m.price, ci.quantity, ci.special_instructions, ci.added_at
		FROM cart_items ci
		JOIN menu_items m ON m.id = ci.menu_item_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.id`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, errs.Storage("list cart items", err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	items := make([]cart.Item, 0)

	for rows.Next() {
		var item cart.Item
		err = rows.Scan(
			&item.ID,
			&item.MenuItemID,
			&item.MenuItemName,
			&item.UnitPrice,
			&item.Quantity,
			&item.SpecialInstructions,
			&item.AddedAt,
		)
		if err != nil {
			return nil, errs.Storage("scan cart item", err)
		}

		items = append(items, item)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, errs.Storage("list cart items", err)
	}

	return items, nil
}

// AddItem inserts a cart line or raises the quantity of the existing one.
// A merge that would exceed MaxQuantity leaves the line as it was.
func (r *Repo) AddItem(ctx context.Context, cartID int, item cart.Item) (int, error) {
	const query = `
		INSERT INTO cart_items (cart_id, menu_item_id, quantity, special_instructions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, menu_item_id) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity,
			special_instructions = CASE
				WHEN EXCLUDED.special_instructions <> '' THEN EXCLUDED.special_instructions
				ELSE cart_items.special_instructions
			END
		WHERE cart_items.quantity + EXCLUDED.quantity <= $5
		RETURNING id`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		cartID, item.MenuItemID, item.Quantity, item.SpecialInstructions, MaxQuantity,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errQuantityOverflow
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				return 0, &errs.ValidationError{Field: "menuItemId", Message: "no such menu item"}
			case pgerrcode.CheckViolation:
				return 0, errQuantityOverflow
			}
		}
		return 0, errs.Storage("add cart item", err)
	}

	return id, nil
}

func (r *Repo) SetQuantity(ctx context.Context, cartID, itemID, quantity int) error {
	const query = "UPDATE cart_items SET quantity = $3 WHERE id = $2 AND cart_id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, cartID, itemID, quantity)
	if err != nil {
		return errs.Storage("set cart item quantity", err)
	}

	return mustAffect(res, "set cart item quantity", itemID)
}

func (r *Repo) RemoveItem(ctx context.Context, cartID, itemID int) error {
	const query = "DELETE FROM cart_items WHERE id = $2 AND cart_id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, cartID, itemID)
	if err != nil {
		return errs.Storage("remove cart item", err)
	}

	return mustAffect(res, "remove cart item", itemID)
}

func (r *Repo) Clear(ctx context.Context, cartID int) error {
	const query = "DELETE FROM cart_items WHERE cart_id = $1"

	if _, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, cartID); err != nil {
		return errs.Storage("clear cart", err)
	}

	return nil
}

func mustAffect(res sql.Result, op string, itemID int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Storage(op, err)
	}
	if n == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, errs.ErrNotFound)
	}
	return nil
}
