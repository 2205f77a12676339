package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

type scopeContextKey struct{}

// scopeToken не пустой, чтобы каждая аллокация имела уникальный адрес.
type scopeToken struct{ id uint64 }

// UnitOfWork — in-memory реализация транзакционной границы. Begin снимает
// копию состояния обоих репозиториев и сериализует пишущие транзакции одним
// мьютексом: это memory-аналог row-блокировок PostgreSQL. Rollback
// восстанавливает снимок, Commit его отбрасывает. Читающие операции идут
// мимо скоупа и мьютекс не берут.
type UnitOfWork struct {
	orders   *OrderRepository
	products *ProductRepository

	mu           sync.Mutex
	active       bool
	orderSnap    map[string]domain.Order
	productSnap  map[string]domain.Product
	currentScope *scopeToken
	nextScopeID  uint64
}

// NewUnitOfWork создаёт unit of work поверх memory-репозиториев.
func NewUnitOfWork(orders *OrderRepository, products *ProductRepository) *UnitOfWork {
	return &UnitOfWork{orders: orders, products: products}
}

// Begin открывает транзакцию: берёт writer-мьютекс и снимает снимок состояния.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	// Контекст с токеном скоупа означает попытку вложенного Begin; проверка
	// по токену не трогает поля и безопасна при конкурентных Begin.
	if _, ok := ctx.Value(scopeContextKey{}).(*scopeToken); ok {
		return ctx, errors.New("unit of work scopes do not nest")
	}

	u.mu.Lock()
	u.active = true
	u.orderSnap = u.orders.snapshot()
	u.productSnap = u.products.snapshot()
	u.nextScopeID++
	u.currentScope = &scopeToken{id: u.nextScopeID}

	return context.WithValue(ctx, scopeContextKey{}, u.currentScope), nil
}

// Commit применяет все эффекты с момента Begin.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if err := u.verifyScope(ctx); err != nil {
		return err
	}

	u.orderSnap = nil
	u.productSnap = nil
	u.currentScope = nil
	u.active = false
	u.mu.Unlock()
	return nil
}

// Rollback восстанавливает снимок, сделанный в Begin. Повторный Rollback
// после Commit безвреден.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if !u.active {
		return nil
	}
	if err := u.verifyScope(ctx); err != nil {
		return err
	}

	u.orders.restore(u.orderSnap)
	u.products.restore(u.productSnap)
	u.orderSnap = nil
	u.productSnap = nil
	u.currentScope = nil
	u.active = false
	u.mu.Unlock()
	return nil
}

func (u *UnitOfWork) verifyScope(ctx context.Context) error {
	token, ok := ctx.Value(scopeContextKey{}).(*scopeToken)
	if !ok || !u.active || token != u.currentScope {
		return errors.New("no active unit of work in context")
	}
	return nil
}

var _ domain.UnitOfWork = (*UnitOfWork)(nil)
