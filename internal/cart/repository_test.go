package cart

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KretovDmitry/bistro/internal/models/cart"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db, trmsql.DefaultCtxGetter, logger.NewNop())
	require.NoError(t, err)

	return repo, mock
}

func TestRepoCartID(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectQuery(`INSERT INTO carts \(user_id\) VALUES \(\$1\) ON CONFLICT \(user_id\)`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	id, err := repo.CartID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 9, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoItems(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM cart_items ci JOIN menu_items m ON m.id = ci.menu_item_id WHERE ci.cart_id = \$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "menu_item_id", "name", "price", "quantity", "special_instructions", "added_at",
		}).
			AddRow(1, 1, "Margherita", "10.00", 2, "", now).
			AddRow(2, 2, "Lemonade", "5.50", 1, "no ice", now))

	items, err := repo.Items(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, items, 2)

	c := cart.Cart{Items: items}
	assert.Equal(t, "25.50", c.Total().StringFixed(2))
	assert.Equal(t, "no ice", items[1].SpecialInstructions)
}

func TestRepoAddItem(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectQuery(`INSERT INTO cart_items (.+) ON CONFLICT \(cart_id, menu_item_id\) DO UPDATE`).
		WithArgs(9, 1, 2, "", MaxQuantity).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	id, err := repo.AddItem(context.Background(), 9, cart.Item{MenuItemID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestRepoAddItemUnknownDish(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectQuery(`INSERT INTO cart_items`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	_, err := repo.AddItem(context.Background(), 9, cart.Item{MenuItemID: 404, Quantity: 1})

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "menuItemId", ve.Field)
}

func TestRepoAddItemQuantityOverflow(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	// The conflict update is skipped, so nothing is returned.
	mock.ExpectQuery(`ON CONFLICT (.+) WHERE cart_items.quantity \+ EXCLUDED.quantity <= \$5 RETURNING id`).
		WithArgs(9, 1, 50, "", MaxQuantity).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.AddItem(context.Background(), 9, cart.Item{MenuItemID: 1, Quantity: 50})

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoAddItemCheckViolation(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectQuery(`INSERT INTO cart_items`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation})

	_, err := repo.AddItem(context.Background(), 9, cart.Item{MenuItemID: 1, Quantity: 1})

	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
}

func TestRepoSetQuantityNotFound(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectExec(`UPDATE cart_items SET quantity = \$3 WHERE id = \$2 AND cart_id = \$1`).
		WithArgs(9, 7, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetQuantity(context.Background(), 9, 7, 3)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRepoRemoveItem(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectExec(`DELETE FROM cart_items WHERE id = \$2 AND cart_id = \$1`).
		WithArgs(9, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.RemoveItem(context.Background(), 9, 7))
}

func TestRepoClearStorageError(t *testing.T) {
	repo, mock := newSQLMockRepo(t)

	mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
		WithArgs(9).
		WillReturnError(sql.ErrConnDone)

	err := repo.Clear(context.Background(), 9)

	var se *errs.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "clear cart", se.Op)
}
