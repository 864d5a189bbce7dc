package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	GetUserByID(ctx context.Context, userID int) (*user.User, error)
	GetUserByLogin(ctx context.Context, login string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) (id int, err error)
	ListUsers(ctx context.Context) ([]*user.User, error)
	// UpdateUser stores profile fields and role. The password is left alone.
	UpdateUser(ctx context.Context, u *user.User) error
	UpdatePassword(ctx context.Context, userID int, hash string) error
	// DeleteUser fails with errs.ErrDataConflict while the user has orders.
	DeleteUser(ctx context.Context, userID int) error
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

const userColumns = "id, login, password, email, first_name, last_name, phone, address, role, created_at, updated_at"

func (r *Repo) GetUserByID(ctx context.Context, userID int) (*user.User, error) {
	const query = "SELECT " + userColumns + " FROM users WHERE id = $1"
	return r.getUser(ctx, query, userID)
}

func (r *Repo) GetUserByLogin(ctx context.Context, login string) (*user.User, error) {
	const query = "SELECT " + userColumns + " FROM users WHERE login = $1"
	return r.getUser(ctx, query, login)
}

func (r *Repo) getUser(ctx context.Context, query string, arg any) (*user.User, error) {
	u, err := scanUser(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Storage("get user", err)
	}

	return u, nil
}

func (r *Repo) ListUsers(ctx context.Context) ([]*user.User, error) {
	const query = "SELECT " + userColumns + " FROM users ORDER BY id"

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Storage("list users", err)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	users := make([]*user.User, 0)

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errs.Storage("scan user", err)
		}
		users = append(users, u)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, errs.Storage("list users", err)
	}

	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*user.User, error) {
	u := new(user.User)

	var email sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Login,
		&u.Password,
		&email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Address,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Email = email.String

	return u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u *user.User) (int, error) {
	const query = `INSERT INTO users (login, password, email, first_name, last_name, phone, address, role)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8) RETURNING id`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		u.Login, u.Password, u.Email, u.FirstName, u.LastName, u.Phone, u.Address, u.Role,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return -1, &errs.AlreadyExistsError{FieldName: uniqueField(pgErr.ConstraintName)}
		}
		return -1, fmt.Errorf("create user: %w", err)
	}

	return id, nil
}

func (r *Repo) UpdateUser(ctx context.Context, u *user.User) error {
	const query = `UPDATE users SET
			email = NULLIF($2, ''), first_name = $3, last_name = $4,
			phone = $5, address = $6, role = $7, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.Address, u.Role,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d: %w", u.ID, errs.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return &errs.AlreadyExistsError{FieldName: uniqueField(pgErr.ConstraintName)}
		}
		return errs.Storage("update user", err)
	}

	return nil
}

func (r *Repo) UpdatePassword(ctx context.Context, userID int, hash string) error {
	const query = "UPDATE users SET password = $2, updated_at = now() WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, userID, hash)
	if err != nil {
		return errs.Storage("update password", err)
	}

	return mustAffect(res, "update password", userID)
}

func (r *Repo) DeleteUser(ctx context.Context, userID int) error {
	const query = "DELETE FROM users WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: user %d has orders", errs.ErrDataConflict, userID)
		}
		return errs.Storage("delete user", err)
	}

	return mustAffect(res, "delete user", userID)
}

func mustAffect(res sql.Result, op string, userID int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Storage(op, err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
	}
	return nil
}

// uniqueField maps a users unique constraint to the request field it guards.
func uniqueField(constraint string) string {
	if strings.Contains(constraint, "email") {
		return "email"
	}
	return "login"
}
