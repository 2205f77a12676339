package domain

import "errors"

var (
	// ErrDuplicateOrderItem — один и тот же товар указан в заказе дважды.
	ErrDuplicateOrderItem = errors.New("duplicate product in order items")
	// ErrProductNotFound — товар с указанным идентификатором не существует.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInactive — товар существует, но выключен.
	ErrProductInactive = errors.New("product is not active")
	// ErrInsufficientStock — запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotModifiable — попытка изменить отменённый заказ.
	ErrOrderNotModifiable = errors.New("order cannot be modified in current status")
	// ErrInvalidStatusTransition — переход статуса нарушает state machine заказа.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")

	// Ошибка отсутствующего имени заказа.
	ErrOrderNameRequired = errors.New("order name is required")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("order status is invalid")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product id is required")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательного остатка.
	ErrStockNegative = errors.New("stock quantity must be non-negative")

	// ErrInfrastructure — инфраструктурный сбой (таймаут блокировки, потеря
	// соединения). Повторять или нет — решает вызывающая сторона, движок
	// ретраев не делает.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// validationErrors — ошибки доменной валидации; они детерминированы и
// повтор запроса с теми же данными бесполезен.
var validationErrors = []error{
	ErrDuplicateOrderItem,
	ErrProductNotFound,
	ErrProductInactive,
	ErrInsufficientStock,
	ErrOrderNotFound,
	ErrOrderNotModifiable,
	ErrInvalidStatusTransition,
	ErrOrderNameRequired,
	ErrOrderStatusInvalid,
	ErrItemQtyInvalid,
	ErrProductIDRequired,
	ErrProductNameRequired,
	ErrStockNegative,
}

// IsDomainError сообщает, относится ли ошибка к доменной валидации.
// Всё остальное считается инфраструктурным классом.
func IsDomainError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
