package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderstock/internal/cache"
	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	"github.com/vladislavdragonenkov/orderstock/internal/service/orders"
	"github.com/vladislavdragonenkov/orderstock/internal/storage/memory"
)

type apiEnv struct {
	products *memory.ProductRepository
	server   *httptest.Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	orderRepo := memory.NewOrderRepository()
	productRepo := memory.NewProductRepository()
	uow := memory.NewUnitOfWork(orderRepo, productRepo)
	gateway := cache.NewGateway(cache.NewMemoryStore(), nil)

	engine := orders.NewServiceWithoutMetrics(orderRepo, productRepo, gateway, nil)
	coordinator := orders.NewCoordinatorWithoutMetrics(uow, engine, nil, nil)
	handler := NewHandler(coordinator, nil)

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &apiEnv{products: productRepo, server: server}
}

func (e *apiEnv) seedProduct(t *testing.T, id string, stock int32, active bool) {
	t.Helper()
	now := time.Now().UTC()
	err := e.products.Create(context.Background(), domain.Product{
		ID:            id,
		Name:          "product " + id,
		StockQuantity: stock,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, buf.Bytes()
}

func createOrderBody(name string, items ...map[string]any) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "test order",
		"items":       items,
	}
}

func item(productID string, quantity int32) map[string]any {
	return map[string]any{"product_id": productID, "quantity": quantity}
}

func TestAPI_CreateOrder(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	resp, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("api order", item("A", 2)))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created orderResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "api order", created.Name)
	assert.Equal(t, string(domain.OrderStatusDelivered), created.Status)
	require.Len(t, created.Items, 1)
	assert.Equal(t, int32(2), created.Items[0].Quantity)
}

func TestAPI_CreateOrderValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", createOrderBody("", item("A", 1))},
		{"no items", createOrderBody("x")},
		{"zero quantity", createOrderBody("x", item("A", 0))},
		{"missing product id", createOrderBody("x", item("", 1))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := env.do(t, http.MethodPost, "/orders", tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(raw))

			var envelope errorResponse
			require.NoError(t, json.Unmarshal(raw, &envelope))
			assert.Equal(t, "validation", envelope.Type)
		})
	}
}

func TestAPI_CreateOrderDomainErrors(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 1, true)

	resp, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("too big", item("A", 5)))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(raw))

	var envelope errorResponse
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "validation", envelope.Type)
	assert.Contains(t, envelope.Error, "insufficient stock")

	resp, raw = env.do(t, http.MethodPost, "/orders", createOrderBody("ghost", item("missing", 1)))
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(raw))
}

func TestAPI_GetOrder(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	_, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("to fetch", item("A", 1)))
	var created orderResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, raw := env.do(t, http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var fetched orderResponse
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	resp, raw = env.do(t, http.MethodGet, "/orders/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var envelope errorResponse
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "not_found", envelope.Type)
}

func TestAPI_ListOrders(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	for i := 0; i < 3; i++ {
		resp, raw := env.do(t, http.MethodPost, "/orders", createOrderBody(fmt.Sprintf("order %d", i), item("A", 1)))
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := env.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var list listResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Orders, 3)

	resp, raw = env.do(t, http.MethodGet, "/orders?name=order+1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Orders, 1)

	resp, raw = env.do(t, http.MethodGet, "/orders?page=1&per_page=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Orders, 2)

	resp, _ = env.do(t, http.MethodGet, "/orders?page=0", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/orders?date=not-a-date", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_UpdateOrder(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)
	env.seedProduct(t, "B", 5, true)

	_, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("initial", item("A", 2)))
	var created orderResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, raw := env.do(t, http.MethodPut, "/orders/"+created.ID,
		createOrderBody("replaced", item("A", 3), item("B", 1)))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var updated orderResponse
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, "replaced", updated.Name)
	assert.Len(t, updated.Items, 2)
}

func TestAPI_StatusTransitions(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	_, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("status flow", item("A", 1)))
	var created orderResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	// Новый заказ сразу delivered: прямой переход невозможен, только отмена.
	resp, raw := env.do(t, http.MethodPatch, "/orders/"+created.ID+"/status",
		map[string]any{"status": "processing"})
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(raw))

	var envelope errorResponse
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "conflict", envelope.Type)

	resp, raw = env.do(t, http.MethodPatch, "/orders/"+created.ID+"/status",
		map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var cancelled orderResponse
	require.NoError(t, json.Unmarshal(raw, &cancelled))
	assert.Equal(t, string(domain.OrderStatusCancelled), cancelled.Status)
	assert.NotNil(t, cancelled.DeletedAt)
}

func TestAPI_DeleteOrder(t *testing.T) {
	env := newAPIEnv(t)
	env.seedProduct(t, "A", 10, true)

	_, raw := env.do(t, http.MethodPost, "/orders", createOrderBody("to delete", item("A", 4)))
	var created orderResponse
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, raw := env.do(t, http.MethodDelete, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var deleted orderResponse
	require.NoError(t, json.Unmarshal(raw, &deleted))
	assert.Equal(t, string(domain.OrderStatusCancelled), deleted.Status)

	// Сток вернулся: заказ на все 10 единиц должен пройти.
	resp, raw = env.do(t, http.MethodPost, "/orders", createOrderBody("full stock", item("A", 10)))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	// Повторное удаление идемпотентно.
	resp, _ = env.do(t, http.MethodDelete, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Изменение отменённого заказа — конфликт.
	resp, raw = env.do(t, http.MethodPut, "/orders/"+created.ID, createOrderBody("late", item("A", 1)))
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(raw))
}
