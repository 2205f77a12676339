package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов. Мутирующие методы
// выполняются в транзакции, переданной через контекст (см. UnitOfWork);
// читающие методы работают и вне транзакции.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Update применяет изменения полей заказа (имя, описание, статус, updated_at).
	Update(ctx context.Context, order Order) error
	// ReplaceItems полностью заменяет состав заказа: старые позиции
	// удаляются, новые вставляются (sync, не merge).
	ReplaceItems(ctx context.Context, orderID string, items []OrderItem) error
	// SoftDelete помечает заказ удалённым, не стирая строку.
	SoftDelete(ctx context.Context, orderID string, at time.Time) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	// Мягко удалённые заказы видимы: отменённый заказ остаётся адресуемым.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы по фильтру, новые первыми. Мягко удалённые
	// заказы в выборку не попадают.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// ProductRepository описывает доступ к товарным остаткам.
type ProductRepository interface {
	// GetForUpdate читает товары по набору идентификаторов, удерживая
	// эксклюзивные блокировки строк до конца транзакции. Порядок ids задаёт
	// порядок взятия блокировок, поэтому вызывающая сторона обязана
	// передавать идентификаторы отсортированными по возрастанию.
	GetForUpdate(ctx context.Context, ids []string) (map[string]Product, error)
	// AdjustStock атомарно меняет остаток товара на delta (может быть < 0).
	AdjustStock(ctx context.Context, id string, delta int32) error
	// Create сохраняет новый товар.
	Create(ctx context.Context, product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
}

// UnitOfWork размечает транзакционную границу вокруг одной логической
// операции. Begin возвращает контекст, несущий открытую транзакцию;
// репозитории достают её оттуда. Скоупы не вкладываются: Begin поверх
// контекста с активной транзакцией — ошибка программирования.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent — событие жизненного цикла заказа, публикуемое после коммита.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher публикует события жизненного цикла наружу. Публикация
// best-effort: ошибка публикации не откатывает уже закоммиченную операцию.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// Pagination описывает постраничную выборку (страницы нумеруются с 1).
type Pagination struct {
	Page        int
	RowsPerPage int
}

// OrderFilter — параметры выборки списка заказов.
type OrderFilter struct {
	// Name и Description фильтруют по подстроке.
	Name        *string
	Description *string
	// CreatedOn фильтрует по календарной дате создания.
	CreatedOn *time.Time
	// Pagination опциональна: nil означает полную выборку.
	Pagination *Pagination
}
