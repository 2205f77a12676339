package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	"github.com/vladislavdragonenkov/orderstock/internal/service/orders"
)

// Лимиты входных полей.
const (
	maxNameLength        = 255
	maxDescriptionLength = 10000
)

const requestTimeout = 10 * time.Second

// Handler — HTTP-адаптер над координатором заказов.
type Handler struct {
	coordinator *orders.Coordinator
	logger      *log.Entry
}

// NewHandler создаёт HTTP-обработчик заказов.
func NewHandler(coordinator *orders.Coordinator, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{coordinator: coordinator, logger: logger}
}

// Router собирает маршруты API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
		r.Delete("/{id}", h.deleteOrder)
	})

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed", err)
		return
	}

	order, err := h.coordinator.CreateOrder(r.Context(), orders.CreateOrderInput{
		Name:        req.Name,
		Description: req.Description,
		Items:       req.items(),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed", err)
		return
	}

	order, err := h.coordinator.UpdateOrder(r.Context(), orders.UpdateOrderInput{
		OrderID:     orderID,
		Name:        req.Name,
		Description: req.Description,
		Items:       req.items(),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", err)
		return
	}

	order, err := h.coordinator.UpdateOrderStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.coordinator.DeleteOrder(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.coordinator.Find(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed", err)
		return
	}

	list, err := h.coordinator.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]orderResponse, 0, len(list))
	for _, order := range list {
		items = append(items, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, listResponse{Orders: items})
}

// writeDomainError переводит доменную ошибку в HTTP-статус и envelope.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, domain.ErrOrderNotModifiable), errors.Is(err, domain.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "conflict", err)
	case domain.IsDomainError(err):
		writeError(w, http.StatusUnprocessableEntity, "validation failed", err)
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
