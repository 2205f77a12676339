package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

// OrderRepository — in-memory реализация domain.OrderRepository.
type OrderRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ вместе с позициями.
func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return fmt.Errorf("order already exists: %s", order.ID)
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Update применяет изменения полей заказа, не трогая состав.
func (r *OrderRepository) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
	}
	current.Name = order.Name
	current.Description = order.Description
	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	r.items[order.ID] = current
	return nil
}

// ReplaceItems полностью заменяет состав заказа.
func (r *OrderRepository) ReplaceItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	current.Items = cloneItems(items)
	r.items[orderID] = current
	return nil
}

// SoftDelete помечает заказ удалённым. Повторное удаление — no-op.
func (r *OrderRepository) SoftDelete(_ context.Context, orderID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if current.DeletedAt != nil {
		return nil
	}
	deletedAt := at
	current.DeletedAt = &deletedAt
	current.UpdatedAt = at
	r.items[orderID] = current
	return nil
}

// Get возвращает заказ включая мягко удалённые или ErrOrderNotFound.
func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return cloneOrder(order), nil
}

// List возвращает неудалённые заказы по фильтру, новые первыми.
func (r *OrderRepository) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.DeletedAt != nil {
			continue
		}
		if filter.Name != nil && !containsFold(order.Name, *filter.Name) {
			continue
		}
		if filter.Description != nil && !containsFold(order.Description, *filter.Description) {
			continue
		}
		if filter.CreatedOn != nil && !sameDate(order.CreatedAt, *filter.CreatedOn) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Pagination != nil {
		offset := (filter.Pagination.Page - 1) * filter.Pagination.RowsPerPage
		if offset >= len(result) {
			return []domain.Order{}, nil
		}
		end := offset + filter.Pagination.RowsPerPage
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}

	return result, nil
}

// snapshot возвращает копию состояния для отката транзакции.
func (r *OrderRepository) snapshot() map[string]domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]domain.Order, len(r.items))
	for id, order := range r.items {
		snap[id] = cloneOrder(order)
	}
	return snap
}

// restore откатывает состояние к снимку.
func (r *OrderRepository) restore(snap map[string]domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = snap
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = cloneItems(order.Items)
	if order.DeletedAt != nil {
		deletedAt := *order.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return clone
}

func cloneItems(items []domain.OrderItem) []domain.OrderItem {
	if items == nil {
		return nil
	}
	clone := make([]domain.OrderItem, len(items))
	copy(clone, items)
	return clone
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
