package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

// ProductRepository — простая in-memory реализация domain.ProductRepository
// для локальной разработки и тестов.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		items: make(map[string]domain.Product),
	}
}

// GetForUpdate возвращает товары по набору идентификаторов. Эксклюзивность
// здесь обеспечивает unit of work: он сериализует пишущие транзакции одним
// мьютексом, поэтому отдельные row-блокировки не нужны.
func (r *ProductRepository) GetForUpdate(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.items[id]; ok && product.DeletedAt == nil {
			result[id] = product
		}
	}
	return result, nil
}

// AdjustStock атомарно меняет остаток товара на delta.
func (r *ProductRepository) AdjustStock(_ context.Context, id string, delta int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok || product.DeletedAt != nil {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	// Страховка от ухода в минус, как CHECK-ограничение в PostgreSQL.
	if product.StockQuantity+delta < 0 {
		return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, id)
	}
	product.StockQuantity += delta
	r.items[id] = product
	return nil
}

// Create сохраняет новый товар.
func (r *ProductRepository) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return fmt.Errorf("product already exists: %s", product.ID)
	}
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *ProductRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok || product.DeletedAt != nil {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return product, nil
}

// snapshot возвращает копию состояния для отката транзакции.
func (r *ProductRepository) snapshot() map[string]domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]domain.Product, len(r.items))
	for id, product := range r.items {
		snap[id] = product
	}
	return snap
}

// restore откатывает состояние к снимку.
func (r *ProductRepository) restore(snap map[string]domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = snap
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
