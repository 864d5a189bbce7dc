package ordering

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/bistro/internal/config"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/order"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, env *testEnv, u *user.User) http.Handler {
	t.Helper()

	cfg := &config.Config{Orders: config.Orders{RecentLimit: 10}}
	ctrl, err := NewController(env.service, cfg, logger.NewNop())
	require.NoError(t, err)

	r := chi.NewRouter()
	if u != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), u)))
			})
		})
	}

	return HandlerWithOptions(ctrl, ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: ctrl.ErrorHandlerFunc,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, []byte) {
	t.Helper()

	var payload io.Reader = http.NoBody
	if body != "" {
		payload = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, payload)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res.StatusCode, data
}

func TestPlaceOrderHandler(t *testing.T) {
	type want struct {
		statusCode int
		total      string
		errorPart  string
	}

	tests := []struct {
		name string
		user *user.User
		body string
		want want
	}{
		{
			name: "OK",
			user: customer,
			body: `{"deliveryAddress":"Main st. 1","items":[{"menuItemId":1,"quantity":2},{"menuItemId":2,"quantity":1}]}`,
			want: want{statusCode: http.StatusCreated, total: "25.50"},
		},
		{
			name: "no address",
			user: customer,
			body: `{"items":[{"menuItemId":1,"quantity":2}]}`,
			want: want{statusCode: http.StatusBadRequest, errorPart: "deliveryAddress"},
		},
		{
			name: "no items",
			user: customer,
			body: `{"deliveryAddress":"Main st. 1","items":[]}`,
			want: want{statusCode: http.StatusBadRequest, errorPart: "items"},
		},
		{
			name: "unknown dish",
			user: customer,
			body: `{"deliveryAddress":"Main st. 1","items":[{"menuItemId":42,"quantity":1}]}`,
			want: want{statusCode: http.StatusBadRequest, errorPart: "items[0].menuItemId"},
		},
		{
			name: "anonymous",
			user: nil,
			body: `{"deliveryAddress":"Main st. 1","items":[{"menuItemId":1,"quantity":1}]}`,
			want: want{statusCode: http.StatusUnauthorized, errorPart: errs.ErrUnauthorized.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			h := newTestRouter(t, env, tt.user)

			code, body := do(t, h, http.MethodPost, "/", tt.body)

			assert.Equal(t, tt.want.statusCode, code, string(body))
			if tt.want.errorPart != "" {
				var e errs.JSON
				require.NoError(t, json.Unmarshal(body, &e))
				assert.Contains(t, e.Error, tt.want.errorPart)
				return
			}

			var raw map[string]any
			require.NoError(t, json.Unmarshal(body, &raw))
			assert.Equal(t, tt.want.total, raw["totalAmount"], "money is a fixed two-decimal string")
			items := raw["items"].([]any)
			require.Len(t, items, 2)
			assert.Equal(t, "10.00", items[0].(map[string]any)["price"])
			assert.Equal(t, "Margherita", items[0].(map[string]any)["menuItemName"])
		})
	}
}

func TestGetOrderHandler(t *testing.T) {
	tests := []struct {
		name       string
		user       *user.User
		path       string
		wantStatus int
	}{
		{"owner", customer, "/70", http.StatusOK},
		{"staff", staff, "/70", http.StatusOK},
		{"stranger", stranger, "/70", http.StatusForbidden},
		{"missing", customer, "/71", http.StatusNotFound},
		{"bad id", customer, "/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.repo.seed(pendingOrder(70), decPtr("42.50"))
			h := newTestRouter(t, env, tt.user)

			code, body := do(t, h, http.MethodGet, tt.path, "")

			require.Equal(t, tt.wantStatus, code, string(body))
			if code == http.StatusOK {
				var got OrderResponse
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, "42.50", got.TotalAmount)
				assert.Equal(t, 70, got.ID)
			}
		})
	}
}

func TestStatusHandlers(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.resetTotalOnStatus = true
	env.repo.seed(pendingOrder(80), decPtr("42.50"))
	delivered := pendingOrder(81)
	delivered.Status = order.DELIVERED
	env.repo.seed(delivered, decPtr("12.00"))
	h := newTestRouter(t, env, staff)

	code, body := do(t, h, http.MethodPut, "/80/status", `{"status":"preparing"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var got OrderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, order.PREPARING, got.Status)
	assert.Equal(t, "42.50", got.TotalAmount)

	code, _ = do(t, h, http.MethodPut, "/80/status", `{"status":"eaten"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodDelete, "/80", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodDelete, "/80", "")
	assert.Equal(t, http.StatusOK, code, "cancel is idempotent")

	code, _ = do(t, h, http.MethodDelete, "/81", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestUpdateOrderHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.seed(pendingOrder(90), decPtr("42.50"))
	h := newTestRouter(t, env, customer)

	code, body := do(t, h, http.MethodPut, "/90", `{"specialInstructions":"ring twice","totalAmount":"50.00"}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var got OrderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ring twice", got.SpecialInstructions)
	assert.Equal(t, "50.00", got.TotalAmount)
	assert.Equal(t, "Main st. 1", got.DeliveryAddress)

	code, body = do(t, h, http.MethodPut, "/90", `{"items":[{"menuItemId":2,"quantity":2}]}`)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "11.00", got.TotalAmount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Lemonade", got.Items[0].MenuItemName)

	code, _ = do(t, h, http.MethodPut, "/90", `{"paymentStatus":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, h, http.MethodPut, "/90", `{"totalAmount":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "totalAmount")
	assert.Contains(t, string(body), "must be a decimal number")
	assert.Equal(t, "11.00", env.repo.storedTotal(90).Decimal.StringFixed(2), "rejected update leaves the total")
}

func TestPermanentDeleteHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.seed(pendingOrder(100, line("10.00", 1)), nil)

	code, _ := do(t, newTestRouter(t, env, staff), http.MethodDelete, "/100/permanent-delete", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, newTestRouter(t, env, admin), http.MethodDelete, "/100/permanent-delete", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, newTestRouter(t, env, admin), http.MethodGet, "/100", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListHandlers(t *testing.T) {
	env := newTestEnv(t, nil)
	a := pendingOrder(110, line("10.00", 2))
	b := pendingOrder(111)
	b.Status = order.READY
	b.OrderDate = time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC)
	env.repo.seed(a, nil)
	env.repo.seed(b, decPtr("42.50"))
	h := newTestRouter(t, env, customer)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantIDs    []int
	}{
		{"all", "/", http.StatusOK, []int{110, 111}},
		{"recent", "/recent?limit=1", http.StatusOK, []int{110}},
		{"recent default", "/recent", http.StatusOK, []int{110, 111}},
		{"recent garbage", "/recent?limit=abc", http.StatusBadRequest, nil},
		{"status", "/status?status=ready", http.StatusOK, []int{111}},
		{"status unknown", "/status?status=eaten", http.StatusBadRequest, nil},
		{"status missing", "/status", http.StatusBadRequest, nil},
		{"end day inclusive", "/date-range?startDate=2024-03-11&endDate=2024-03-11", http.StatusOK, []int{111}},
		{"bad date", "/date-range?startDate=11.03.2024&endDate=2024-03-11", http.StatusBadRequest, nil},
		{"reversed dates", "/date-range?startDate=2024-03-12&endDate=2024-03-10", http.StatusBadRequest, nil},
		{"own user", "/user/1", http.StatusOK, []int{110, 111}},
		{"other user", "/user/2", http.StatusForbidden, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, code, string(body))
			if tt.wantIDs == nil {
				return
			}

			var got []OrderResponse
			require.NoError(t, json.Unmarshal(body, &got))
			ids := make([]int, 0, len(got))
			for _, o := range got {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
