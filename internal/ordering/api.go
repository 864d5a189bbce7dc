package ordering

import (
	"net/http"
	"strconv"
	"time"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/request"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LineParams is one requested order item.
type LineParams struct {
	SpecialInstructions string `json:"specialInstructions" validate:"max=500"`
	MenuItemID          int    `json:"menuItemId" validate:"gt=0"`
	Quantity            int    `json:"quantity" validate:"gt=0"`
}

// PlaceOrderParams defines parameters for PlaceOrder.
type PlaceOrderParams struct {
	DeliveryDate        *time.Time   `json:"deliveryDate"`
	DeliveryAddress     string       `json:"deliveryAddress" validate:"required,max=255"`
	PaymentMethod       string       `json:"paymentMethod" validate:"max=32"`
	SpecialInstructions string       `json:"specialInstructions" validate:"max=1000"`
	Items               []LineParams `json:"items" validate:"min=1,dive"`
}

// UpdateOrderParams defines parameters for UpdateOrder. Omitted fields are kept.
type UpdateOrderParams struct {
	DeliveryDate        *time.Time       `json:"deliveryDate"`
	DeliveryAddress     *string          `json:"deliveryAddress" validate:"omitempty,min=1,max=255"`
	PaymentMethod       *string          `json:"paymentMethod" validate:"omitempty,max=32"`
	PaymentStatus       *string          `json:"paymentStatus" validate:"omitempty,oneof=PENDING PAID FAILED"`
	Status              *string          `json:"status"`
	SpecialInstructions *string          `json:"specialInstructions" validate:"omitempty,max=1000"`
	TotalAmount         *Amount          `json:"totalAmount"`
	Items               []LineParams     `json:"items" validate:"omitempty,dive"`
}

// Amount is a money value in a request body.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) (err error) {
	a.Decimal, err = request.ParseDecimal("totalAmount", data)
	return err
}

// UpdateStatusParams defines parameters for UpdateStatus.
type UpdateStatusParams struct {
	Status string `json:"status" validate:"required"`
}

// RecentParams defines parameters for ListRecent. Zero limit means the configured default.
type RecentParams struct {
	Limit int
}

// StatusParams defines parameters for ListByStatus.
type StatusParams struct {
	Status string
}

// DateRangeParams defines parameters for ListByDateRange. End is exclusive.
type DateRangeParams struct {
	Start time.Time
	End   time.Time
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Place an order (POST /api/orders)
	PlaceOrder(w http.ResponseWriter, r *http.Request, params PlaceOrderParams)
	// Own orders, every order for staff (GET /api/orders)
	ListOrders(w http.ResponseWriter, r *http.Request)
	// Newest orders (GET /api/orders/recent)
	ListRecent(w http.ResponseWriter, r *http.Request, params RecentParams)
	// Orders by status (GET /api/orders/status)
	ListByStatus(w http.ResponseWriter, r *http.Request, params StatusParams)
	// Orders placed within dates (GET /api/orders/date-range)
	ListByDateRange(w http.ResponseWriter, r *http.Request, params DateRangeParams)
	// Orders of one user (GET /api/orders/user/{userId})
	ListByUser(w http.ResponseWriter, r *http.Request, userID int)
	// Single order (GET /api/orders/{id})
	GetOrder(w http.ResponseWriter, r *http.Request, id int)
	// Full update (PUT /api/orders/{id})
	UpdateOrder(w http.ResponseWriter, r *http.Request, id int, params UpdateOrderParams)
	// Status change (PUT /api/orders/{id}/status)
	UpdateStatus(w http.ResponseWriter, r *http.Request, id int, params UpdateStatusParams)
	// Cancel (DELETE /api/orders/{id})
	CancelOrder(w http.ResponseWriter, r *http.Request, id int)
	// Remove for good (DELETE /api/orders/{id}/permanent-delete)
	DeleteOrder(w http.ResponseWriter, r *http.Request, id int)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	handler := http.Handler(f)

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		return 0, &errs.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return v, nil
}

// PlaceOrder operation middleware.
func (siw *ServerInterfaceWrapper) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var params PlaceOrderParams

	if err := request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PlaceOrder(w, r, params)
	})
}

// ListOrders operation middleware.
func (siw *ServerInterfaceWrapper) ListOrders(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListOrders)
}

// ListRecent operation middleware.
func (siw *ServerInterfaceWrapper) ListRecent(w http.ResponseWriter, r *http.Request) {
	var params RecentParams

	// ------------- Optional query parameter "limit" -------------

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		params.Limit = limit
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListRecent(w, r, params)
	})
}

// ListByStatus operation middleware.
func (siw *ServerInterfaceWrapper) ListByStatus(w http.ResponseWriter, r *http.Request) {
	var params StatusParams

	// ------------- Required query parameter "status" -------------

	params.Status = r.URL.Query().Get("status")
	if params.Status == "" {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "status", Message: "is required"})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListByStatus(w, r, params)
	})
}

// ListByDateRange operation middleware.
func (siw *ServerInterfaceWrapper) ListByDateRange(w http.ResponseWriter, r *http.Request) {
	var params DateRangeParams

	// ------------- Required query parameters "startDate", "endDate" -------------

	start, err := time.Parse(dateLayout, r.URL.Query().Get("startDate"))
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "startDate", Message: "must be a date in yyyy-mm-dd format"})
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("endDate"))
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "endDate", Message: "must be a date in yyyy-mm-dd format"})
		return
	}

	params.Start = start
	// The end day is included.
	params.End = end.AddDate(0, 0, 1)

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListByDateRange(w, r, params)
	})
}

// ListByUser operation middleware.
func (siw *ServerInterfaceWrapper) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "userId")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListByUser(w, r, userID)
	})
}

// GetOrder operation middleware.
func (siw *ServerInterfaceWrapper) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetOrder(w, r, id)
	})
}

// UpdateOrder operation middleware.
func (siw *ServerInterfaceWrapper) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var params UpdateOrderParams

	if err = request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateOrder(w, r, id, params)
	})
}

// UpdateStatus operation middleware.
func (siw *ServerInterfaceWrapper) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var params UpdateStatusParams

	if err = request.DecodeJSON(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateStatus(w, r, id, params)
	})
}

// CancelOrder operation middleware.
func (siw *ServerInterfaceWrapper) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CancelOrder(w, r, id)
	})
}

// DeleteOrder operation middleware.
func (siw *ServerInterfaceWrapper) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteOrder(w, r, id)
	})
}

// Handler creates http.Handler with the order routes.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
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

	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Post(base+"/", wrapper.PlaceOrder)
		r.Get(base+"/", wrapper.ListOrders)
		r.Get(base+"/recent", wrapper.ListRecent)
		r.Get(base+"/status", wrapper.ListByStatus)
		r.Get(base+"/date-range", wrapper.ListByDateRange)
		r.Get(base+"/user/{userId}", wrapper.ListByUser)
		r.Get(base+"/{id}", wrapper.GetOrder)
		r.Put(base+"/{id}", wrapper.UpdateOrder)
		r.Put(base+"/{id}/status", wrapper.UpdateStatus)
		r.Delete(base+"/{id}", wrapper.CancelOrder)
		r.Delete(base+"/{id}/permanent-delete", wrapper.DeleteOrder)
	})

	return r
}
