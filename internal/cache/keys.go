package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

const (
	// Одиночный заказ: orders:{order_id}
	orderKeyPrefix = "orders:"

	// Списочные выборки: orders:list:name:{v|null}:desc:{v|null}:date:{v|null}:page:{v|null}:per_page:{v|null}
	listKeyPrefix = "orders:list:"
)

var (
	// TTLOrder — одиночные записи живут долго, их инвалидация точечная.
	TTLOrder = 2 * time.Hour
	// TTLOrderList — списочные записи короткоживущие: любая мутация меняет выборки.
	TTLOrderList = 10 * time.Minute
)

// OrderKey возвращает ключ кэша одиночного заказа.
func OrderKey(orderID string) string {
	return orderKeyPrefix + orderID
}

// ListPrefix возвращает общий префикс всех списочных ключей.
func ListPrefix() string {
	return listKeyPrefix
}

// ListKey детерминированно сворачивает комбинацию фильтров в ключ:
// одинаковые фильтры всегда дают один ключ, разные — разные.
func ListKey(filter domain.OrderFilter) string {
	parts := []string{
		"name:" + nullable(filter.Name),
		"desc:" + nullable(filter.Description),
	}

	if filter.CreatedOn != nil {
		parts = append(parts, "date:"+filter.CreatedOn.Format("2006-01-02"))
	} else {
		parts = append(parts, "date:null")
	}

	if filter.Pagination != nil {
		parts = append(parts,
			"page:"+strconv.Itoa(filter.Pagination.Page),
			"per_page:"+strconv.Itoa(filter.Pagination.RowsPerPage),
		)
	} else {
		parts = append(parts, "page:null", "per_page:null")
	}

	return listKeyPrefix + strings.Join(parts, ":")
}

func nullable(v *string) string {
	if v == nil {
		return "null"
	}
	return *v
}
