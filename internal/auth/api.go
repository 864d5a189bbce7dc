package auth

import (
	"net/http"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/request"
	"github.com/go-chi/chi/v5"
)

// RegisterParams defines parameters for Register.
type RegisterParams struct {
	Login     string `json:"login" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,max=72"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=32"`
	Address   string `json:"address" validate:"max=255"`
}

// LoginParams defines parameters for Login.
type LoginParams struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileParams defines parameters for UpdateProfile. Omitted fields are kept,
// an empty email removes it.
type ProfileParams struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

// ChangePasswordParams defines parameters for ChangePassword.
type ChangePasswordParams struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Registration (POST /api/user/register)
	Register(w http.ResponseWriter, r *http.Request, params RegisterParams)
	// Authentication (POST /api/user/login)
	Login(w http.ResponseWriter, r *http.Request, params LoginParams)
	// Sign out (POST /api/user/logout)
	Logout(w http.ResponseWriter, r *http.Request)
	// Current user profile (GET /api/user/me)
	Me(w http.ResponseWriter, r *http.Request)
	// Profile change (PUT /api/user/profile)
	UpdateProfile(w http.ResponseWriter, r *http.Request, params ProfileParams)
	// Password change (POST /api/user/password/change)
	ChangePassword(w http.ResponseWriter, r *http.Request, params ChangePasswordParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

// Register operation middleware.
func (siw *ServerInterfaceWrapper) Register(w http.ResponseWriter, r *http.Request) {
	// Parameter object where we will unmarshal all parameters from the context.
	var params RegisterParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Register(w, r, params)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// Login operation middleware.
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	// Parameter object where we will unmarshal all parameters from the context.
	var params LoginParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Login(w, r, params)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// UpdateProfile operation middleware.
func (siw *ServerInterfaceWrapper) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var params ProfileParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.UpdateProfile(w, r, params)
}

// ChangePassword operation middleware.
func (siw *ServerInterfaceWrapper) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var params ChangePasswordParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.ChangePassword(w, r, params)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Middlewares wrap register and login, e.g. a rate limiter.
	Middlewares []MiddlewareFunc
	// Authenticator guards the profile routes.
	Authenticator MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/register", wrapper.Register)
		r.Post(options.BaseURL+"/login", wrapper.Login)
		r.Post(options.BaseURL+"/logout", si.Logout)
	})
	r.Group(func(r chi.Router) {
		if options.Authenticator != nil {
			r.Use(options.Authenticator)
		}
		r.Get(options.BaseURL+"/me", si.Me)
		r.Put(options.BaseURL+"/profile", wrapper.UpdateProfile)
		r.Post(options.BaseURL+"/password/change", wrapper.ChangePassword)
	})

	return r
}
