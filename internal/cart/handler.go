package cart

import (
	"errors"
	"net/http"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/response"
	"github.com/KretovDmitry/bistro/internal/models/cart"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/internal/ordering"
	"github.com/KretovDmitry/bistro/pkg/logger"
)

// ItemResponse is a cart line as sent to clients.
type ItemResponse struct {
	MenuItemName        string `json:"menuItemName"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
	UnitPrice           string `json:"unitPrice"`
	Subtotal            string `json:"subtotal"`
	ID                  int    `json:"id"`
	MenuItemID          int    `json:"menuItemId"`
	Quantity            int    `json:"quantity"`
}

// Response is the cart as sent to clients.
type Response struct {
	Items []ItemResponse `json:"items"`
	Total string         `json:"total"`
	ID    int            `json:"id"`
	Count int            `json:"count"`
}

// NewResponse renders money with two decimals.
func NewResponse(c *cart.Cart) Response {
	items := make([]ItemResponse, 0, len(c.Items))
	for _, i := range c.Items {
		items = append(items, ItemResponse{
			ID:                  i.ID,
			MenuItemID:          i.MenuItemID,
			MenuItemName:        i.MenuItemName,
			SpecialInstructions: i.SpecialInstructions,
			UnitPrice:           i.UnitPrice.StringFixed(2),
			Subtotal:            i.Subtotal().StringFixed(2),
			Quantity:            i.Quantity,
		})
	}

	return Response{
		ID:    c.ID,
		Items: items,
		Total: c.Total().StringFixed(2),
		Count: c.Count(),
	}
}

type Controller struct {
	service      *Service
	logger       logger.Logger
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func NewController(service *Service, logger logger.Logger) (*Controller, error) {
	if service == nil {
		return nil, errors.New("nil dependency: service")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Controller{
		service:      service,
		logger:       logger,
		errorHandler: response.ErrorHandler(logger),
	}, nil
}

var _ ServerInterface = (*Controller)(nil)

// ErrorHandlerFunc maps errors to status codes, see response.StatusCode.
func (c *Controller) ErrorHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	c.errorHandler(w, r, err)
}

func (c *Controller) caller(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	u, found := user.FromContext(r.Context())
	if !found {
		c.errorHandler(w, r, errs.ErrUnauthorized)
		return nil, false
	}
	return u, true
}

func (c *Controller) writeCart(w http.ResponseWriter, r *http.Request, crt *cart.Cart, err error) {
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}
	if err = response.JSON(w, http.StatusOK, NewResponse(crt)); err != nil {
		c.logger.With(r.Context()).Errorf("write cart response: %s", err)
	}
}

// Current cart (GET /api/cart).
func (c *Controller) GetCart(w http.ResponseWriter, r *http.Request) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	crt, err := c.service.Get(r.Context(), u.ID)
	c.writeCart(w, r, crt, err)
}

// Add a dish (POST /api/cart/items).
func (c *Controller) AddItem(w http.ResponseWriter, r *http.Request, params AddItemParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	crt, err := c.service.Add(r.Context(), u.ID, cart.Item{
		MenuItemID:          params.MenuItemID,
		Quantity:            params.Quantity,
		SpecialInstructions: params.SpecialInstructions,
	})
	c.writeCart(w, r, crt, err)
}

// Change quantity, zero removes (PUT /api/cart/items/{itemId}).
func (c *Controller) SetQuantity(w http.ResponseWriter, r *http.Request, itemID int, params SetQuantityParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	crt, err := c.service.SetQuantity(r.Context(), u.ID, itemID, *params.Quantity)
	c.writeCart(w, r, crt, err)
}

// Remove a line (DELETE /api/cart/items/{itemId}).
func (c *Controller) RemoveItem(w http.ResponseWriter, r *http.Request, itemID int) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	crt, err := c.service.Remove(r.Context(), u.ID, itemID)
	c.writeCart(w, r, crt, err)
}

// Empty the cart (DELETE /api/cart).
func (c *Controller) ClearCart(w http.ResponseWriter, r *http.Request) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	if err := c.service.Clear(r.Context(), u.ID); err != nil {
		c.errorHandler(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Place an order from the cart (POST /api/cart/checkout).
func (c *Controller) Checkout(w http.ResponseWriter, r *http.Request, params CheckoutParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	o, err := c.service.Checkout(r.Context(), u.ID, CheckoutDetails{
		DeliveryDate:        params.DeliveryDate,
		DeliveryAddress:     params.DeliveryAddress,
		PaymentMethod:       params.PaymentMethod,
		SpecialInstructions: params.SpecialInstructions,
	})
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	if err = response.JSON(w, http.StatusCreated, ordering.NewOrderResponse(o)); err != nil {
		c.logger.With(r.Context()).Errorf("write checkout response: %s", err)
	}
}
