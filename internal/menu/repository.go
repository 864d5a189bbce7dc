package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

type Repository interface {
	GetItem(ctx context.Context, id int) (*menu.Item, error)
	ListAvailable(ctx context.Context) ([]*menu.Item, error)
	ListByCategory(ctx context.Context, category string) ([]*menu.Item, error)
	ListFeatured(ctx context.Context) ([]*menu.Item, error)
	Search(ctx context.Context, term string) ([]*menu.Item, error)
	Categories(ctx context.Context) ([]string, error)
	// CreateItem stores a new dish and fills its id and timestamps.
	CreateItem(ctx context.Context, item *menu.Item) error
	UpdateItem(ctx context.Context, item *menu.Item) error
	// DeleteItem removes the dish from the menu and from every cart.
	// Placed orders keep their snapshots.
	DeleteItem(ctx context.Context, id int) error
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

const itemColumns = "id, name, description, category, image_url, price, available, featured, created_at, updated_at"

func (r *Repo) GetItem(ctx context.Context, id int) (*menu.Item, error) {
	query := "SELECT " + itemColumns + " FROM menu_items WHERE id = $1"

	item := new(menu.Item)

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Category,
		&item.ImageURL,
		&item.Price,
		&item.Available,
		&item.Featured,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("menu item %d: %w", id, errs.ErrNotFound)
		}
		return nil, errs.Storage("get menu item", err)
	}

	return item, nil
}

func (r *Repo) ListAvailable(ctx context.Context) ([]*menu.Item, error) {
	query := "SELECT " + itemColumns + " FROM menu_items WHERE available ORDER BY category, name"
	return r.list(ctx, "list menu", query)
}

func (r *Repo) ListByCategory(ctx context.Context, category string) ([]*menu.Item, error) {
	query := "SELECT " + itemColumns + " FROM menu_items WHERE available AND lower(category) = lower($1) ORDER BY name"
	return r.list(ctx, "list menu category", query, category)
}

func (r *Repo) ListFeatured(ctx context.Context) ([]*menu.Item, error) {
	query := "SELECT " + itemColumns + " FROM menu_items WHERE available AND featured ORDER BY name"
	return r.list(ctx, "list featured menu", query)
}

func (r *Repo) Search(ctx context.Context, term string) ([]*menu.Item, error) {
	query := "SELECT " + itemColumns + ` FROM menu_items
		WHERE available AND (name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		ORDER BY name`
	return r.list(ctx, "search menu", query, term)
}

func (r *Repo) Categories(ctx context.Context) ([]string, error) {
	const query = "SELECT DISTINCT category FROM menu_items WHERE available ORDER BY category"

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Storage("list categories", err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	categories := make([]string, 0)

	for rows.Next() {
		var c string
		if err = rows.Scan(&c); err != nil {
			return nil, errs.Storage("scan category", err)
		}
		categories = append(categories, c)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, errs.Storage("list categories", err)
	}

	return categories, nil
}

func (r *Repo) list(ctx context.Context, op, query string, args ...any) ([]*menu.Item, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	items := make([]*menu.Item, 0)

	for rows.Next() {
		item := new(menu.Item)
		err = rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Category,
			&item.ImageURL,
			&item.Price,
			&item.Available,
			&item.Featured,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, errs.Storage(op, err)
		}

		items = append(items, item)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}

	return items, nil
}

func (r *Repo) CreateItem(ctx context.Context, item *menu.Item) error {
	const query = `INSERT INTO menu_items (name, description, category, image_url, price, available, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		item.Name, item.Description, item.Category, item.ImageURL, item.Price, item.Available, item.Featured,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return errs.Storage("create menu item", err)
	}

	return nil
}

func (r *Repo) UpdateItem(ctx context.Context, item *menu.Item) error {
	const query = `UPDATE menu_items SET
			name = $2, description = $3, category = $4, image_url = $5,
			price = $6, available = $7, featured = $8, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		item.ID, item.Name, item.Description, item.Category, item.ImageURL, item.Price, item.Available, item.Featured,
	).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("menu item %d: %w", item.ID, errs.ErrNotFound)
		}
		return errs.Storage("update menu item", err)
	}

	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, id int) error {
	const query = "DELETE FROM menu_items WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return errs.Storage("delete menu item", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errs.Storage("delete menu item", err)
	}
	if n == 0 {
		return fmt.Errorf("menu item %d: %w", id, errs.ErrNotFound)
	}

	return nil
}
