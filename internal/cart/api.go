package cart

import (
	"net/http"
	"strconv"
	"time"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/request"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// AddItemParams defines parameters for AddItem.
type AddItemParams struct {
	SpecialInstructions string `json:"specialInstructions" validate:"max=1000"`
	MenuItemID          int    `json:"menuItemId" validate:"required,gt=0"`
	Quantity            int    `json:"quantity" validate:"required,gt=0,max=99"`
}

// SetQuantityParams defines parameters for SetQuantity.
type SetQuantityParams struct {
	Quantity *int `json:"quantity" validate:"required,max=99"`
}

// CheckoutParams defines parameters for Checkout.
type CheckoutParams struct {
	DeliveryDate        *time.Time `json:"deliveryDate"`
	DeliveryAddress     string     `json:"deliveryAddress" validate:"required,max=255"`
	PaymentMethod       string     `json:"paymentMethod" validate:"max=32"`
	SpecialInstructions string     `json:"specialInstructions" validate:"max=1000"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Current cart (GET /api/cart)
	GetCart(w http.ResponseWriter, r *http.Request)
	// Add a dish (POST /api/cart/items)
	AddItem(w http.ResponseWriter, r *http.Request, params AddItemParams)
	// Change quantity, zero removes (PUT /api/cart/items/{itemId})
	SetQuantity(w http.ResponseWriter, r *http.Request, itemID int, params SetQuantityParams)
	// Remove a line (DELETE /api/cart/items/{itemId})
	RemoveItem(w http.ResponseWriter, r *http.Request, itemID int)
	// Empty the cart (DELETE /api/cart)
	ClearCart(w http.ResponseWriter, r *http.Request)
	// Place an order from the cart (POST /api/cart/checkout)
	Checkout(w http.ResponseWriter, r *http.Request, params CheckoutParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func itemID(r *http.Request) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, "itemId"))
	if err != nil || v <= 0 {
		return 0, &errs.ValidationError{Field: "itemId", Message: "must be a positive integer"}
	}
	return v, nil
}

// AddItem operation middleware.
func (siw *ServerInterfaceWrapper) AddItem(w http.ResponseWriter, r *http.Request) {
	var params AddItemParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.AddItem(w, r, params)
}

// SetQuantity operation middleware.
func (siw *ServerInterfaceWrapper) SetQuantity(w http.ResponseWriter, r *http.Request) {
	// ------------- Path parameter "itemId" -------------

	id, err := itemID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var params SetQuantityParams

	if err = request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.SetQuantity(w, r, id, params)
}

// RemoveItem operation middleware.
func (siw *ServerInterfaceWrapper) RemoveItem(w http.ResponseWriter, r *http.Request) {
	// ------------- Path parameter "itemId" -------------

	id, err := itemID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.RemoveItem(w, r, id)
}

// Checkout operation middleware.
func (siw *ServerInterfaceWrapper) Checkout(w http.ResponseWriter, r *http.Request) {
	var params CheckoutParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.Checkout(w, r, params)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
}

// HandlerWithOptions creates http.Handler with the cart routes.
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
		r.Get(base+"/", si.GetCart)
		r.Delete(base+"/", si.ClearCart)
		r.Post(base+"/items", wrapper.AddItem)
		r.Put(base+"/items/{itemId}", wrapper.SetQuantity)
		r.Delete(base+"/items/{itemId}", wrapper.RemoveItem)
		r.Post(base+"/checkout", wrapper.Checkout)
	})

	return r
}
