package ordering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/shopspring/decimal"
)

type Repository interface {
	FindOrder(ctx context.Context, id int) (*order.Stored, error)
	FindOrders(ctx context.Context, filter order.Filter) ([]*order.Stored, error)
	CreateOrder(ctx context.Context, o *order.Order) (int, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
	ReplaceLines(ctx context.Context, orderID int, lines []order.Line) error
	UpdateStatus(ctx context.Context, id int, status order.Status) error
	GetTotal(ctx context.Context, id int) (decimal.NullDecimal, error)
	UpdateTotal(ctx context.Context, id int, total decimal.Decimal) error
	DeleteOrder(ctx context.Context, id int) error
	LookupOverride(ctx context.Context, orderID int) (decimal.Decimal, bool, error)
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

const orderColumns = `id, user_id, status, total_amount, order_date, delivery_date,
	delivery_address, payment_method, payment_status, special_instructions`

const lineColumns = `id, order_id, menu_item_id, menu_item_name, quantity, price, special_instructions`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*order.Stored, error) {
	o := new(order.Stored)
	var deliveryDate sql.NullTime

	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.StoredTotal,
		&o.OrderDate,
		&deliveryDate,
		&o.DeliveryAddress,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.SpecialInstructions,
	)
	if err != nil {
		return nil, err
	}

	if deliveryDate.Valid {
		o.DeliveryDate = &deliveryDate.Time
	}

	return o, nil
}

func (r *Repo) FindOrder(ctx context.Context, id int) (*order.Stored, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"

	o, err := scanOrder(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
		}
		return nil, errs.Storage("find order", err)
	}

	if err = r.attachLines(ctx, []*order.Stored{o}); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *Repo) FindOrders(ctx context.Context, filter order.Filter) ([]*order.Stored, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.UserID != 0 {
		where = append(where, "user_id = "+arg(filter.UserID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if !filter.From.IsZero() {
		where = append(where, "order_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "order_date < "+arg(filter.To))
	}

	var b strings.Builder
	b.WriteString("SELECT " + orderColumns + " FROM orders")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY order_date DESC, id DESC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + arg(filter.Limit))
	}

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, errs.Storage("find orders", err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	orders := make([]*order.Stored, 0)

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errs.Storage("scan order", err)
		}
		orders = append(orders, o)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, errs.Storage("find orders", err)
	}

	if err = r.attachLines(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachLines loads the lines of all given orders with one query.
func (r *Repo) attachLines(ctx context.Context, orders []*order.Stored) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int]*order.Stored, len(orders))
	placeholders := make([]string, 0, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + lineColumns + " FROM order_items WHERE order_id IN (" +
		strings.Join(placeholders, ", ") + ") ORDER BY order_id, id"

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return errs.Storage("find order lines", err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	for rows.Next() {
		var l order.Line
		err = rows.Scan(
			&l.ID,
			&l.OrderID,
			&l.MenuItemID,
			&l.MenuItemName,
			&l.Quantity,
			&l.UnitPrice,
			&l.SpecialInstructions,
		)
		if err != nil {
			return errs.Storage("scan order line", err)
		}
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return errs.Storage("find order lines", err)
	}

	return nil
}

// CreateOrder inserts the order and its lines. Run it inside a transaction.
func (r *Repo) CreateOrder(ctx context.Context, o *order.Order) (int, error) {
	const query = `
		INSERT INTO orders (user_id, status, total_amount, order_date, delivery_date,
			delivery_address, payment_method, payment_status, special_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		o.UserID,
		o.Status,
		o.Total,
		o.OrderDate,
		nullTime(o.DeliveryDate),
		o.DeliveryAddress,
		o.PaymentMethod,
		o.PaymentStatus,
		o.SpecialInstructions,
	).Scan(&id)
	if err != nil {
		return 0, errs.Storage("create order", err)
	}

	if err = r.insertLines(ctx, id, o.Lines); err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Repo) insertLines(ctx context.Context, orderID int, lines []order.Line) error {
	const query = `
		INSERT INTO order_items (order_id, menu_item_id, menu_item_name, quantity, price, special_instructions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	db := r.getter.DefaultTrOrDB(ctx, r.db)

	for i := range lines {
		l := &lines[i]
		err := db.QueryRowContext(ctx, query,
			orderID,
			l.MenuItemID,
			l.MenuItemName,
			l.Quantity,
			l.UnitPrice,
			l.SpecialInstructions,
		).Scan(&l.ID)
		if err != nil {
			return errs.Storage("create order line", err)
		}
		l.OrderID = orderID
	}

	return nil
}

func (r *Repo) UpdateOrder(ctx context.Context, o *order.Order) error {
	const query = `
		UPDATE orders SET status = $2, total_amount = $3, delivery_date = $4, delivery_address = $5,
			payment_method = $6, payment_status = $7, special_instructions = $8
		WHERE id = $1`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		o.ID,
		o.Status,
		o.Total,
		nullTime(o.DeliveryDate),
		o.DeliveryAddress,
		o.PaymentMethod,
		o.PaymentStatus,
		o.SpecialInstructions,
	)
	if err != nil {
		return errs.Storage("update order", err)
	}

	return r.mustAffect(res, "update order", o.ID)
}

// ReplaceLines drops the current lines of the order and inserts the given ones.
// Run it inside a transaction.
func (r *Repo) ReplaceLines(ctx context.Context, orderID int, lines []order.Line) error {
	const query = "DELETE FROM order_items WHERE order_id = $1"

	if _, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, orderID); err != nil {
		return errs.Storage("delete order lines", err)
	}

	return r.insertLines(ctx, orderID, lines)
}

func (r *Repo) UpdateStatus(ctx context.Context, id int, status order.Status) error {
	const query = "UPDATE orders SET status = $2 WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id, status)
	if err != nil {
		return errs.Storage("update order status", err)
	}

	return r.mustAffect(res, "update order status", id)
}

func (r *Repo) GetTotal(ctx context.Context, id int) (decimal.NullDecimal, error) {
	const query = "SELECT total_amount FROM orders WHERE id = $1"

	var total decimal.NullDecimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return total, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
		}
		return total, errs.Storage("get order total", err)
	}

	return total, nil
}

func (r *Repo) UpdateTotal(ctx context.Context, id int, total decimal.Decimal) error {
	const query = "UPDATE orders SET total_amount = $2 WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id, total)
	if err != nil {
		return errs.Storage("update order total", err)
	}

	return r.mustAffect(res, "update order total", id)
}

// DeleteOrder removes the lines and then the order. Run it inside a transaction.
func (r *Repo) DeleteOrder(ctx context.Context, id int) error {
	db := r.getter.DefaultTrOrDB(ctx, r.db)

	if _, err := db.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", id); err != nil {
		return errs.Storage("delete order lines", err)
	}

	res, err := db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return errs.Storage("delete order", err)
	}

	return r.mustAffect(res, "delete order", id)
}

// LookupOverride reads the manual_total_overrides table.
func (r *Repo) LookupOverride(ctx context.Context, orderID int) (decimal.Decimal, bool, error) {
	const query = "SELECT total_amount FROM manual_total_overrides WHERE order_id = $1"

	var total decimal.Decimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, orderID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, errs.Storage("lookup total override", err)
	}

	return total, true, nil
}

func (r *Repo) mustAffect(res sql.Result, op string, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Storage(op, err)
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
