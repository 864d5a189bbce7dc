package menu

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/request"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// SearchParams defines parameters for Search.
type SearchParams struct {
	Query string
}

// Price is a dish price in a request body.
type Price struct {
	decimal.Decimal
}

func (p *Price) UnmarshalJSON(data []byte) (err error) {
	p.Decimal, err = request.ParseDecimal("price", data)
	return err
}

// CreateItemParams defines parameters for CreateItem. Available defaults to true.
type CreateItemParams struct {
	Price       *Price `json:"price" validate:"required"`
	Available   *bool  `json:"available"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"required,max=50"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url,max=500"`
	Featured    bool   `json:"featured"`
}

// UpdateItemParams defines parameters for UpdateItem. Omitted fields are kept.
type UpdateItemParams struct {
	Price       *Price  `json:"price"`
	Available   *bool   `json:"available"`
	Featured    *bool   `json:"featured"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=50"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url,max=500"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Available dishes (GET /api/menu)
	ListItems(w http.ResponseWriter, r *http.Request)
	// Categories (GET /api/menu/categories)
	ListCategories(w http.ResponseWriter, r *http.Request)
	// Featured dishes (GET /api/menu/featured)
	ListFeatured(w http.ResponseWriter, r *http.Request)
	// Dishes of a category (GET /api/menu/category/{category})
	ListByCategory(w http.ResponseWriter, r *http.Request, category string)
	// Search by name or description (GET /api/menu/search)
	Search(w http.ResponseWriter, r *http.Request, params SearchParams)
	// Single dish (GET /api/menu/{id})
	GetItem(w http.ResponseWriter, r *http.Request, id int)
	// Add a dish (POST /api/menu)
	CreateItem(w http.ResponseWriter, r *http.Request, params CreateItemParams)
	// Change a dish (PUT /api/menu/{id})
	UpdateItem(w http.ResponseWriter, r *http.Request, id int, params UpdateItemParams)
	// Remove a dish (DELETE /api/menu/{id})
	DeleteItem(w http.ResponseWriter, r *http.Request, id int)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// ListByCategory operation middleware.
func (siw *ServerInterfaceWrapper) ListByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	if category == "" {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "category", Message: "is required"})
		return
	}

	siw.Handler.ListByCategory(w, r, category)
}

// Search operation middleware.
func (siw *ServerInterfaceWrapper) Search(w http.ResponseWriter, r *http.Request) {
	// ------------- Required query parameter "q" -------------

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "q", Message: "is required"})
		return
	}

	siw.Handler.Search(w, r, SearchParams{Query: q})
}

// GetItem operation middleware.
func (siw *ServerInterfaceWrapper) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.itemID(w, r)
	if !ok {
		return
	}

	siw.Handler.GetItem(w, r, id)
}

// CreateItem operation middleware.
func (siw *ServerInterfaceWrapper) CreateItem(w http.ResponseWriter, r *http.Request) {
	var params CreateItemParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.CreateItem(w, r, params)
}

// UpdateItem operation middleware.
func (siw *ServerInterfaceWrapper) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.itemID(w, r)
	if !ok {
		return
	}

	var params UpdateItemParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.UpdateItem(w, r, id, params)
}

// DeleteItem operation middleware.
func (siw *ServerInterfaceWrapper) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.itemID(w, r)
	if !ok {
		return
	}

	siw.Handler.DeleteItem(w, r, id)
}

func (siw *ServerInterfaceWrapper) itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Authenticator guards the routes that change the menu.
	Authenticator func(http.Handler) http.Handler
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
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Get(base+"/", si.ListItems)
		r.Get(base+"/categories", si.ListCategories)
		r.Get(base+"/featured", si.ListFeatured)
		r.Get(base+"/category/{category}", wrapper.ListByCategory)
		r.Get(base+"/search", wrapper.Search)
		r.Get(base+"/{id}", wrapper.GetItem)
	})
	r.Group(func(r chi.Router) {
		if options.Authenticator != nil {
			r.Use(options.Authenticator)
		}
		r.Post(base+"/", wrapper.CreateItem)
		r.Put(base+"/{id}", wrapper.UpdateItem)
		r.Delete(base+"/{id}", wrapper.DeleteItem)
	})

	return r
}
