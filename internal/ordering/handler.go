package ordering

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KretovDmitry/bistro/internal/config"
	"github.com/KretovDmitry/bistro/internal/interface/api/rest/response"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
)

const maxRecentLimit = 100

// LineResponse is an order item as sent to clients.
type LineResponse struct {
	MenuItemName        string `json:"menuItemName"`
	Price               string `json:"price"`
	Subtotal            string `json:"subtotal"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
	ID                  int    `json:"id"`
	MenuItemID          int    `json:"menuItemId"`
	Quantity            int    `json:"quantity"`
}

// OrderResponse is an order as sent to clients. Money is a fixed two-decimal string.
type OrderResponse struct {
	OrderDate           time.Time      `json:"orderDate"`
	DeliveryDate        *time.Time     `json:"deliveryDate,omitempty"`
	Status              order.Status   `json:"status"`
	PaymentStatus       string         `json:"paymentStatus"`
	TotalAmount         string         `json:"totalAmount"`
	DeliveryAddress     string         `json:"deliveryAddress"`
	PaymentMethod       string         `json:"paymentMethod"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
	Items               []LineResponse `json:"items"`
	ID                  int            `json:"id"`
	UserID              int            `json:"userId"`
}

func NewOrderResponse(o *order.Order) OrderResponse {
	items := make([]LineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, LineResponse{
			ID:                  l.ID,
			MenuItemID:          l.MenuItemID,
			MenuItemName:        l.MenuItemName,
			Quantity:            l.Quantity,
			Price:               l.UnitPrice.StringFixed(2),
			Subtotal:            l.Subtotal().StringFixed(2),
			SpecialInstructions: l.SpecialInstructions,
		})
	}
	return OrderResponse{
		ID:                  o.ID,
		UserID:              o.UserID,
		Status:              o.Status,
		TotalAmount:         o.Total.StringFixed(2),
		OrderDate:           o.OrderDate,
		DeliveryDate:        o.DeliveryDate,
		DeliveryAddress:     o.DeliveryAddress,
		PaymentMethod:       o.PaymentMethod,
		PaymentStatus:       string(o.PaymentStatus),
		SpecialInstructions: o.SpecialInstructions,
		Items:               items,
	}
}

func newOrderResponses(orders []*order.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

// Controller serves the order API on top of Service.
type Controller struct {
	service      *Service
	config       *config.Config
	logger       logger.Logger
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func NewController(service *Service, config *config.Config, logger logger.Logger) (*Controller, error) {
	if service == nil {
		return nil, errors.New("nil dependency: service")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Controller{
		service:      service,
		config:       config,
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

func (c *Controller) writeOrder(w http.ResponseWriter, r *http.Request, code int, o *order.Order) {
	if err := response.JSON(w, code, NewOrderResponse(o)); err != nil {
		c.logger.With(r.Context()).Errorf("write order response: %s", err)
	}
}

func (c *Controller) writeOrders(w http.ResponseWriter, r *http.Request, orders []*order.Order) {
	if err := response.JSON(w, http.StatusOK, newOrderResponses(orders)); err != nil {
		c.logger.With(r.Context()).Errorf("write orders response: %s", err)
	}
}

// Place an order (POST /api/orders).
func (c *Controller) PlaceOrder(w http.ResponseWriter, r *http.Request, params PlaceOrderParams) {
	// Get user from context.
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	// Take names and prices from the menu.
	lines, err := c.service.Snapshot(r.Context(), linesFromParams(params.Items))
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	o, err := c.service.Place(r.Context(), &order.Order{
		UserID:              u.ID,
		DeliveryDate:        params.DeliveryDate,
		DeliveryAddress:     params.DeliveryAddress,
		PaymentMethod:       params.PaymentMethod,
		SpecialInstructions: params.SpecialInstructions,
		Lines:               lines,
	})
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrder(w, r, http.StatusCreated, o)
}

// Own orders, every order for staff (GET /api/orders).
func (c *Controller) ListOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	orders, err := c.service.ListAll(r.Context(), u)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrders(w, r, orders)
}

// Newest orders (GET /api/orders/recent).
func (c *Controller) ListRecent(w http.ResponseWriter, r *http.Request, params RecentParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	limit := params.Limit
	if limit == 0 {
		limit = c.config.Orders.RecentLimit
	}
	limit = min(limit, maxRecentLimit)

	orders, err := c.service.ListRecent(r.Context(), u, limit)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrders(w, r, orders)
}

// Orders by status (GET /api/orders/status).
func (c *Controller) ListByStatus(w http.ResponseWriter, r *http.Request, params StatusParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	status, valid := order.ParseStatus(params.Status)
	if !valid {
		c.errorHandler(w, r, &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", params.Status)})
		return
	}

	orders, err := c.service.ListByStatus(r.Context(), u, status)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrders(w, r, orders)
}

// Orders placed within dates (GET /api/orders/date-range).
func (c *Controller) ListByDateRange(w http.ResponseWriter, r *http.Request, params DateRangeParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	orders, err := c.service.ListByDateRange(r.Context(), u, params.Start, params.End)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrders(w, r, orders)
}

// Orders of one user (GET /api/orders/user/{userId}).
func (c *Controller) ListByUser(w http.ResponseWriter, r *http.Request, userID int) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	orders, err := c.service.ListByUser(r.Context(), u, userID)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrders(w, r, orders)
}

// Single order (GET /api/orders/{id}).
func (c *Controller) GetOrder(w http.ResponseWriter, r *http.Request, id int) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	o, err := c.service.GetByID(r.Context(), u, id)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrder(w, r, http.StatusOK, o)
}

// Full update (PUT /api/orders/{id}).
func (c *Controller) UpdateOrder(w http.ResponseWriter, r *http.Request, id int, params UpdateOrderParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	p := UpdateParams{
		ID:                  id,
		DeliveryDate:        params.DeliveryDate,
		DeliveryAddress:     params.DeliveryAddress,
		PaymentMethod:       params.PaymentMethod,
		SpecialInstructions: params.SpecialInstructions,
	}
	if params.PaymentStatus != nil {
		ps := order.PaymentStatus(*params.PaymentStatus)
		p.PaymentStatus = &ps
	}
	if params.Status != nil {
		status, valid := order.ParseStatus(*params.Status)
		if !valid {
			c.errorHandler(w, r, &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *params.Status)})
			return
		}
		p.Status = &status
	}
	if params.TotalAmount != nil {
		p.Total = decimal.NewNullDecimal(params.TotalAmount.Decimal)
	}
	if len(params.Items) > 0 {
		lines, err := c.service.Snapshot(r.Context(), linesFromParams(params.Items))
		if err != nil {
			c.errorHandler(w, r, err)
			return
		}
		p.Lines = lines
	}

	o, err := c.service.FullUpdate(r.Context(), u, p)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrder(w, r, http.StatusOK, o)
}

// Status change (PUT /api/orders/{id}/status).
func (c *Controller) UpdateStatus(w http.ResponseWriter, r *http.Request, id int, params UpdateStatusParams) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	status, valid := order.ParseStatus(params.Status)
	if !valid {
		c.errorHandler(w, r, &errs.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", params.Status)})
		return
	}

	o, err := c.service.UpdateStatus(r.Context(), u, id, status)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrder(w, r, http.StatusOK, o)
}

// Cancel (DELETE /api/orders/{id}).
func (c *Controller) CancelOrder(w http.ResponseWriter, r *http.Request, id int) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	o, err := c.service.Cancel(r.Context(), u, id)
	if err != nil {
		c.errorHandler(w, r, err)
		return
	}

	c.writeOrder(w, r, http.StatusOK, o)
}

// Remove for good (DELETE /api/orders/{id}/permanent-delete).
func (c *Controller) DeleteOrder(w http.ResponseWriter, r *http.Request, id int) {
	u, ok := c.caller(w, r)
	if !ok {
		return
	}

	if err := c.service.PermanentDelete(r.Context(), u, id); err != nil {
		c.errorHandler(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func linesFromParams(items []LineParams) []order.Line {
	lines := make([]order.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, order.Line{
			MenuItemID:          it.MenuItemID,
			Quantity:            it.Quantity,
			SpecialInstructions: it.SpecialInstructions,
		})
	}
	return lines
}
