package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	"github.com/vladislavdragonenkov/orderstock/internal/service/orders"
)

// orderRequest — тело запросов создания и полного обновления заказа.
type orderRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Items       []itemRequest `json:"items"`
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// validate проверяет форматные ограничения входа. Доменные инварианты
// (дубликаты позиций, сток, активность товара) проверяет движок.
func (r orderRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("name is longer than %d characters", maxNameLength)
	}
	if len(r.Description) > maxDescriptionLength {
		return fmt.Errorf("description is longer than %d characters", maxDescriptionLength)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("items are required")
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			return fmt.Errorf("items[%d].product_id is required", i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
	}
	return nil
}

func (r orderRequest) items() []orders.ItemInput {
	items := make([]orders.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, orders.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

// orderResponse — представление заказа в ответах API.
type orderResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Items       []itemResponse `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

type itemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type listResponse struct {
	Orders []orderResponse `json:"orders"`
}

// errorResponse — единый envelope ошибок API.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Type    string `json:"type"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemResponse{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return orderResponse{
		ID:          order.ID,
		Name:        order.Name,
		Description: order.Description,
		Status:      string(order.Status),
		Items:       items,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		DeletedAt:   order.DeletedAt,
	}
}

// filterFromQuery разбирает параметры выборки: name, description,
// date (YYYY-MM-DD), page, per_page.
func filterFromQuery(r *http.Request) (domain.OrderFilter, error) {
	var filter domain.OrderFilter
	query := r.URL.Query()

	if name := query.Get("name"); name != "" {
		filter.Name = &name
	}
	if description := query.Get("description"); description != "" {
		filter.Description = &description
	}
	if date := query.Get("date"); date != "" {
		createdOn, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.OrderFilter{}, fmt.Errorf("date must be in YYYY-MM-DD format")
		}
		filter.CreatedOn = &createdOn
	}

	pageRaw := query.Get("page")
	perPageRaw := query.Get("per_page")
	if pageRaw != "" || perPageRaw != "" {
		page, err := positiveInt(pageRaw, 1)
		if err != nil {
			return domain.OrderFilter{}, fmt.Errorf("page must be a positive integer")
		}
		perPage, err := positiveInt(perPageRaw, 15)
		if err != nil {
			return domain.OrderFilter{}, fmt.Errorf("per_page must be a positive integer")
		}
		filter.Pagination = &domain.Pagination{Page: page, RowsPerPage: perPage}
	}

	return filter, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string, err error) {
	writeJSON(w, code, errorResponse{
		Message: message,
		Error:   err.Error(),
		Type:    errorTypeForStatus(code),
	})
}

func errorTypeForStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "validation"
	default:
		return "infrastructure"
	}
}
