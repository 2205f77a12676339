package domain

import "time"

// Product — товар с общим остатком на складе. Остаток меняется только
// внутри залоченного цикла резервирования, никакой другой код его не трогает.
type Product struct {
	ID          string
	Name        string
	Description string
	// StockQuantity — доступный остаток, инвариант: всегда >= 0.
	StockQuantity int32
	// IsActive — выключенный товар нельзя резервировать.
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// HasStock проверяет, хватает ли остатка под запрошенное количество.
func (p *Product) HasStock(quantity int32) bool {
	return p.StockQuantity >= quantity
}

// Validate проверяет, корректно ли заполнены ключевые поля товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
