package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает обработки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ взят в обработку.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// forwardTransitions задаёт прямую цепочку pending → processing → shipped → delivered.
var forwardTransitions = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода по state machine заказа.
// Отмена разрешена из любого статуса; переход cancelled → cancelled
// трактуется как no-op, любой другой выход из cancelled запрещён.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return true
	}
	if s == OrderStatusCancelled {
		return false
	}
	return forwardTransitions[s] == next
}

// OrderItem — одна позиция заказа. Составной ключ (OrderID, ProductID)
// гарантирует не более одной записи на товар в рамках заказа.
type OrderItem struct {
	OrderID   string
	ProductID string
	// Quantity — количество зарезервированных единиц, всегда >= 1.
	Quantity  int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	Name        string
	Description string
	Status      OrderStatus
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// DeletedAt заполняется при мягком удалении (отмене) заказа.
	DeletedAt *time.Time
}

// CanBeModified сообщает, можно ли менять поля и состав заказа.
// Отменённый заказ терминален и не редактируется.
func (o *Order) CanBeModified() bool {
	return o.Status != OrderStatusCancelled
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Name == "" {
		errs = append(errs, ErrOrderNameRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}

	// Состав заказа не должен содержать двух позиций одного товара.
	seen := make(map[string]struct{}, len(o.Items))
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ErrDuplicateOrderItem)
		}
		seen[item.ProductID] = struct{}{}
	}

	return errs
}
