package user

import (
	"context"
	"time"
)

// Role defines what a user may do beyond their own orders.
type Role string

const (
	CUSTOMER Role = "CUSTOMER"
	STAFF    Role = "STAFF"
	ADMIN    Role = "ADMIN"
)

// IsElevated reports whether the role may act on other users' orders.
func (r Role) IsElevated() bool {
	return r == ADMIN || r == STAFF
}

// IsAdmin reports whether the role may permanently delete other users' orders.
func (r Role) IsAdmin() bool {
	return r == ADMIN
}

// User description. Fields aligned for the GC optimal scanning.
type User struct {
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Login     string    `db:"login" json:"login"`
	Password  string    `db:"password" json:"-"`
	Email     string    `db:"email" json:"email,omitempty"`
	FirstName string    `db:"first_name" json:"firstName,omitempty"`
	LastName  string    `db:"last_name" json:"lastName,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	Role      Role      `db:"role" json:"role"`
	ID        int       `db:"id" json:"id"`
}

// CanManage reports whether u may read or change an order owned by ownerID.
func (u *User) CanManage(ownerID int) bool {
	return u != nil && (u.ID == ownerID || u.Role.IsElevated())
}

// CanDelete reports whether u may permanently delete an order owned by ownerID.
func (u *User) CanDelete(ownerID int) bool {
	return u != nil && (u.ID == ownerID || u.Role.IsAdmin())
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// userKey is the key for user.User values in Contexts. It is
// unexported; clients use user.NewContext and user.FromContext
// instead of using this key directly.
var userKey key

// NewContext returns a new Context that carries value u.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext returns the User value stored in ctx, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}
