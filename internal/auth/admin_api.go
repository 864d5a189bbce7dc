package auth

import (
	"net/http"
	"strconv"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/request"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// CreateUserParams defines parameters for CreateUser. Role defaults to CUSTOMER.
type CreateUserParams struct {
	Login     string `json:"login" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,max=72"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=32"`
	Address   string `json:"address" validate:"max=255"`
	Role      string `json:"role" validate:"omitempty,oneof=CUSTOMER STAFF ADMIN"`
}

// UpdateUserParams defines parameters for UpdateUser. Omitted fields are kept.
type UpdateUserParams struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
	Role      *string `json:"role" validate:"omitempty,oneof=CUSTOMER STAFF ADMIN"`
}

func (p UpdateUserParams) profile() ProfileParams {
	return ProfileParams{
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Address:   p.Address,
	}
}

// SetPasswordParams defines parameters for SetPassword.
type SetPasswordParams struct {
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// AdminServerInterface represents the user management handlers.
type AdminServerInterface interface {
	// Every user (GET /api/admin/users)
	ListUsers(w http.ResponseWriter, r *http.Request)
	// Single user (GET /api/admin/users/{id})
	GetUser(w http.ResponseWriter, r *http.Request, id int)
	// Add a user with any role (POST /api/admin/users)
	CreateUser(w http.ResponseWriter, r *http.Request, params CreateUserParams)
	// Change profile or role (PUT /api/admin/users/{id})
	UpdateUser(w http.ResponseWriter, r *http.Request, id int, params UpdateUserParams)
	// Reset a password (PUT /api/admin/users/{id}/password)
	SetPassword(w http.ResponseWriter, r *http.Request, id int, params SetPasswordParams)
	// Remove a user (DELETE /api/admin/users/{id})
	DeleteUser(w http.ResponseWriter, r *http.Request, id int)
}

// AdminServerInterfaceWrapper converts payloads to parameters.
type AdminServerInterfaceWrapper struct {
	Handler          AdminServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// GetUser operation middleware.
func (siw *AdminServerInterfaceWrapper) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.userID(w, r)
	if !ok {
		return
	}

	siw.Handler.GetUser(w, r, id)
}

// CreateUser operation middleware.
func (siw *AdminServerInterfaceWrapper) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params CreateUserParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.CreateUser(w, r, params)
}

// UpdateUser operation middleware.
func (siw *AdminServerInterfaceWrapper) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.userID(w, r)
	if !ok {
		return
	}

	var params UpdateUserParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.UpdateUser(w, r, id, params)
}

// SetPassword operation middleware.
func (siw *AdminServerInterfaceWrapper) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.userID(w, r)
	if !ok {
		return
	}

	var params SetPasswordParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.SetPassword(w, r, id, params)
}

// DeleteUser operation middleware.
func (siw *AdminServerInterfaceWrapper) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.userID(w, r)
	if !ok {
		return
	}

	siw.Handler.DeleteUser(w, r, id)
}

func (siw *AdminServerInterfaceWrapper) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

type AdminChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Middlewares run before every handler, in order. They must authenticate
	// the caller and admit admins only.
	Middlewares []MiddlewareFunc
}

// AdminHandlerWithOptions creates http.Handler with additional options.
func AdminHandlerWithOptions(si AdminServerInterface, options AdminChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := AdminServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	base := options.BaseURL

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Get(base+"/users", si.ListUsers)
		r.Post(base+"/users", wrapper.CreateUser)
		r.Get(base+"/users/{id}", wrapper.GetUser)
		r.Put(base+"/users/{id}", wrapper.UpdateUser)
		r.Put(base+"/users/{id}/password", wrapper.SetPassword)
		r.Delete(base+"/users/{id}", wrapper.DeleteUser)
	})

	return r
}
