package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	"github.com/vladislavdragonenkov/orderstock/internal/metrics"
)

// Имена операций для метрик и логов.
const (
	opCreateOrder       = "create_order"
	opUpdateOrder       = "update_order"
	opDeleteOrder       = "delete_order"
	opUpdateOrderStatus = "update_order_status"
)

// Coordinator — транзакционная граница вокруг движка заказов. Каждая мутация
// проходит путь Begin -> движок -> Commit; при любой ошибке движка выполняется
// Rollback и исходная ошибка возвращается вызывающей стороне без изменений.
// Инвалидация кэша и публикация событий идут строго после успешного коммита.
type Coordinator struct {
	uow     domain.UnitOfWork
	engine  *Service
	events  domain.EventPublisher
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewCoordinator создаёт координатор жизненного цикла заказов. events может
// быть nil — тогда события не публикуются.
func NewCoordinator(
	uow domain.UnitOfWork,
	engine *Service,
	events domain.EventPublisher,
	logger *log.Entry,
) *Coordinator {
	c := newCoordinator(uow, engine, events, logger)
	c.metrics = metrics.NewOrderMetrics()
	return c
}

// NewCoordinatorWithoutMetrics создаёт координатор без метрик (для тестов).
func NewCoordinatorWithoutMetrics(
	uow domain.UnitOfWork,
	engine *Service,
	events domain.EventPublisher,
	logger *log.Entry,
) *Coordinator {
	return newCoordinator(uow, engine, events, logger)
}

func newCoordinator(
	uow domain.UnitOfWork,
	engine *Service,
	events domain.EventPublisher,
	logger *log.Entry,
) *Coordinator {
	if logger == nil {
		logger = log.WithField("component", "order-coordinator")
	}
	return &Coordinator{
		uow:    uow,
		engine: engine,
		events: events,
		logger: logger,
	}
}

// CreateOrder создаёт заказ в транзакции.
func (c *Coordinator) CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	order, err := c.mutate(ctx, opCreateOrder, func(ctx context.Context) (domain.Order, bool, error) {
		created, err := c.engine.CreateOrder(ctx, input)
		return created, err == nil, err
	}, domain.EventOrderCreated)
	if err == nil && c.metrics != nil {
		c.metrics.RecordOrderCreated()
	}
	return order, err
}

// UpdateOrder обновляет заказ в транзакции.
func (c *Coordinator) UpdateOrder(ctx context.Context, input UpdateOrderInput) (domain.Order, error) {
	order, err := c.mutate(ctx, opUpdateOrder, func(ctx context.Context) (domain.Order, bool, error) {
		updated, err := c.engine.UpdateOrder(ctx, input)
		return updated, err == nil, err
	}, domain.EventOrderUpdated)
	if err == nil && c.metrics != nil {
		c.metrics.RecordOrderUpdated()
	}
	return order, err
}

// DeleteOrder отменяет заказ в транзакции. Повторное удаление уже
// отменённого заказа — успешный no-op без события.
func (c *Coordinator) DeleteOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := c.mutate(ctx, opDeleteOrder, func(ctx context.Context) (domain.Order, bool, error) {
		return c.engine.DeleteOrder(ctx, orderID)
	}, domain.EventOrderCanceled)
	if err == nil && c.metrics != nil {
		c.metrics.RecordOrderCanceled()
	}
	return order, err
}

// UpdateOrderStatus переводит заказ в следующий статус в транзакции.
func (c *Coordinator) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, error) {
	order, err := c.mutate(ctx, opUpdateOrderStatus, func(ctx context.Context) (domain.Order, bool, error) {
		return c.engine.UpdateOrderStatus(ctx, orderID, next)
	}, domain.EventOrderStatusChanged)
	if err == nil && c.metrics != nil {
		c.metrics.RecordStatusTransition()
	}
	return order, err
}

// Find возвращает заказ; отсутствие — ошибка. Чтения идут вне транзакций.
func (c *Coordinator) Find(ctx context.Context, orderID string) (domain.Order, error) {
	return c.engine.Find(ctx, orderID)
}

// Get возвращает заказ или nil, если его нет.
func (c *Coordinator) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return c.engine.Get(ctx, orderID)
}

// List возвращает выборку заказов по фильтру.
func (c *Coordinator) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return c.engine.List(ctx, filter)
}

// mutate оборачивает операцию движка в транзакцию. changed=false означает
// идемпотентный no-op: коммит выполняется, но событие не публикуется.
func (c *Coordinator) mutate(
	ctx context.Context,
	operation string,
	fn func(ctx context.Context) (domain.Order, bool, error),
	eventType string,
) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordOperationDuration(operation, time.Since(start))
		}
	}()

	txCtx, err := c.uow.Begin(ctx)
	if err != nil {
		c.recordFailure(operation, err)
		return domain.Order{}, fmt.Errorf("%w: begin transaction: %s", domain.ErrInfrastructure, err)
	}

	order, changed, err := fn(txCtx)
	if err != nil {
		if rbErr := c.uow.Rollback(txCtx); rbErr != nil {
			c.logger.WithError(rbErr).WithField("operation", operation).Error("rollback failed")
		}
		if c.metrics != nil {
			c.metrics.RecordRollback()
		}
		c.recordFailure(operation, err)
		return domain.Order{}, err
	}

	if err := c.uow.Commit(txCtx); err != nil {
		if rbErr := c.uow.Rollback(txCtx); rbErr != nil {
			c.logger.WithError(rbErr).WithField("operation", operation).Error("rollback after failed commit failed")
		}
		c.recordFailure(operation, err)
		return domain.Order{}, fmt.Errorf("%w: commit transaction: %s", domain.ErrInfrastructure, err)
	}

	// Инвалидация только после коммита: неудавшийся коммит не должен стирать
	// кэш под данными, которые так и не были сохранены.
	c.engine.InvalidateOrderCaches(ctx, order.ID)

	if changed {
		c.publish(ctx, eventType, order)
	}

	return order, nil
}

func (c *Coordinator) recordFailure(operation string, err error) {
	if c.metrics != nil {
		c.metrics.RecordOperationFailed(operation)
	}
	c.logger.WithError(err).WithField("operation", operation).Warn("order operation failed")
}

// publish отправляет событие по принципу best effort: сбой брокера логируется,
// но не откатывает уже закоммиченную операцию.
func (c *Coordinator) publish(ctx context.Context, eventType string, order domain.Order) {
	if c.events == nil {
		return
	}
	event := domain.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		Status:     string(order.Status),
		OccurredAt: time.Now().UTC(),
	}
	if err := c.events.PublishOrderEvent(ctx, event); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("publish order event failed")
	}
}
