package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderstock/internal/cache"
	"github.com/vladislavdragonenkov/orderstock/internal/domain"
	"github.com/vladislavdragonenkov/orderstock/internal/metrics"
)

// initialOrderStatus — статус нового заказа. Пока исполнение мгновенное,
// заказ сразу считается доставленным.
const initialOrderStatus = domain.OrderStatusDelivered

// ItemInput — одна позиция запроса: товар и количество (>= 1).
type ItemInput struct {
	ProductID string
	Quantity  int32
}

// CreateOrderInput — входные данные создания заказа. Вход уже прошёл
// форматную валидацию на внешнем слое; движок проверяет только доменные
// инварианты.
type CreateOrderInput struct {
	Name        string
	Description string
	Items       []ItemInput
}

// UpdateOrderInput — входные данные полного обновления заказа: поля и состав
// заменяются целиком.
type UpdateOrderInput struct {
	OrderID     string
	Name        string
	Description string
	Items       []ItemInput
}

// Service — движок резервирования стока и мутаций заказов. Все мутирующие
// методы выполняются внутри активного unit of work вызывающей стороны и сами
// ничего не коммитят: при ошибке движок просто возвращает её, а откат
// выполняет транзакционная граница.
type Service struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	cache    *cache.Gateway
	logger   *log.Entry
	metrics  *metrics.OrderMetrics

	// now и newID подменяются в тестах.
	now   func() time.Time
	newID func() string
}

// NewService создаёт движок заказов.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	cacheGateway *cache.Gateway,
	logger *log.Entry,
) *Service {
	svc := newService(orders, products, cacheGateway, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics создаёт движок без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	cacheGateway *cache.Gateway,
	logger *log.Entry,
) *Service {
	return newService(orders, products, cacheGateway, logger)
}

func newService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	cacheGateway *cache.Gateway,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	return &Service{
		orders:   orders,
		products: products,
		cache:    cacheGateway,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// CreateOrder резервирует сток под все позиции и создаёт заказ.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	ids, err := distinctProductIDs(input.Items)
	if err != nil {
		return domain.Order{}, err
	}

	products, err := s.lockProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	orderID := s.newID()

	items, err := s.reserveLocked(ctx, orderID, input.Items, products, now)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:          orderID,
		Name:        input.Name,
		Description: input.Description,
		Status:      initialOrderStatus,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
	}).Info("order created")

	return order, nil
}

// UpdateOrder возвращает на склад сток старого состава, резервирует новый и
// полностью заменяет позиции и редактируемые поля заказа.
func (s *Service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (domain.Order, error) {
	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.CanBeModified() {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotModifiable, order.ID)
	}

	newIDs, err := distinctProductIDs(input.Items)
	if err != nil {
		return domain.Order{}, err
	}

	// Блокируем объединение старого и нового набора товаров одним сортированным
	// батчем: возврат и резервирование проходят под одними блокировками, и
	// глобальный порядок взятия (по возрастанию id) не нарушается.
	union := unionIDs(itemProductIDs(order.Items), newIDs)
	products, err := s.lockProducts(ctx, union)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.releaseLocked(ctx, order.Items, products); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	items, err := s.reserveLocked(ctx, order.ID, input.Items, products, now)
	if err != nil {
		return domain.Order{}, err
	}

	order.Name = input.Name
	order.Description = input.Description
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.ReplaceItems(ctx, order.ID, items); err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"items":    len(order.Items),
	}).Info("order updated")

	return order, nil
}

// DeleteOrder возвращает сток на склад, переводит заказ в cancelled и мягко
// удаляет его. Удаление уже отменённого заказа — идемпотентный no-op;
// второй результат сообщает, была ли выполнена реальная работа.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) (domain.Order, bool, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, false, nil
	}

	products, err := s.lockProducts(ctx, itemProductIDs(order.Items))
	if err != nil {
		return domain.Order{}, false, err
	}
	if err := s.releaseLocked(ctx, order.Items, products); err != nil {
		return domain.Order{}, false, err
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, false, err
	}
	if err := s.orders.SoftDelete(ctx, order.ID, now); err != nil {
		return domain.Order{}, false, err
	}
	deletedAt := now
	order.DeletedAt = &deletedAt

	s.logger.WithField("order_id", order.ID).Info("order canceled")

	return order, true, nil
}

// UpdateOrderStatus переводит заказ в следующий статус по state machine.
// Переход в cancelled эквивалентен удалению: сток возвращается на склад.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, bool, error) {
	if !next.Valid() {
		return domain.Order{}, false, fmt.Errorf("%w: %s", domain.ErrOrderStatusInvalid, next)
	}
	if next == domain.OrderStatusCancelled {
		return s.DeleteOrder(ctx, orderID)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if !order.Status.CanTransitionTo(next) {
		return domain.Order{}, false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, order.Status, next)
	}

	order.Status = next
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, false, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   next,
	}).Info("order status changed")

	return order, true, nil
}

// Find возвращает заказ через кэш; отсутствие — ошибка ErrOrderNotFound.
func (s *Service) Find(ctx context.Context, orderID string) (domain.Order, error) {
	return cache.Remember(ctx, s.cache, cache.OrderKey(orderID), cache.TTLOrder,
		func(ctx context.Context) (domain.Order, error) {
			return s.orders.Get(ctx, orderID)
		})
}

// Get возвращает заказ через кэш; отсутствие — не ошибка, а nil.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List возвращает отфильтрованную выборку заказов через кэш.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return cache.Remember(ctx, s.cache, cache.ListKey(filter), cache.TTLOrderList,
		func(ctx context.Context) ([]domain.Order, error) {
			return s.orders.List(ctx, filter)
		})
}

// InvalidateOrderCaches сбрасывает кэш одиночного заказа и все списочные
// записи. Вызывается координатором после успешного коммита, чтобы сбой
// коммита не стирал кэш под данными, которые так и не были сохранены.
func (s *Service) InvalidateOrderCaches(ctx context.Context, orderID string) {
	s.cache.Forget(ctx, cache.OrderKey(orderID))
	s.cache.ForgetPrefix(ctx, cache.ListPrefix())
}

// lockProducts берёт эксклюзивные блокировки на товары строго по возрастанию
// идентификаторов. Единый порядок у всех конкурентных вызовов исключает
// циклическое ожидание независимо от порядка позиций в запросе.
func (s *Service) lockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	products, err := s.products.GetForUpdate(ctx, sorted)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// reserveLocked проверяет и списывает сток по каждой позиции в исходном
// порядке запроса. Товары уже должны быть под блокировкой. Частичные эффекты
// при ошибке откатывает объемлющая транзакция.
func (s *Service) reserveLocked(
	ctx context.Context,
	orderID string,
	items []ItemInput,
	products map[string]domain.Product,
	now time.Time,
) ([]domain.OrderItem, error) {
	reserved := make([]domain.OrderItem, 0, len(items))
	var units int64

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductInactive, product.Name)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrItemQtyInvalid, item.ProductID)
		}
		if !product.HasStock(item.Quantity) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, product.Name)
		}

		if err := s.products.AdjustStock(ctx, product.ID, -item.Quantity); err != nil {
			return nil, err
		}
		product.StockQuantity -= item.Quantity
		products[product.ID] = product
		units += int64(item.Quantity)

		reserved = append(reserved, domain.OrderItem{
			OrderID:   orderID,
			ProductID: product.ID,
			Quantity:  item.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordUnitsReserved(units)
	}

	return reserved, nil
}

// releaseLocked возвращает на склад сток всех позиций заказа. Каждая
// списанная единица возвращается ровно один раз — закон сохранения стока.
func (s *Service) releaseLocked(ctx context.Context, items []domain.OrderItem, products map[string]domain.Product) error {
	var units int64

	for _, item := range items {
		if err := s.products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if product, ok := products[item.ProductID]; ok {
			product.StockQuantity += item.Quantity
			products[item.ProductID] = product
		}
		units += int64(item.Quantity)
	}

	if s.metrics != nil {
		s.metrics.RecordUnitsReleased(units)
	}

	return nil
}

// distinctProductIDs возвращает уникальные идентификаторы товаров или
// ErrDuplicateOrderItem, если какой-то товар указан дважды. Проверка идёт до
// любого обращения к хранилищу.
func distinctProductIDs(items []ItemInput) ([]string, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateOrderItem, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids, nil
}

func itemProductIDs(items []domain.OrderItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	return union
}
