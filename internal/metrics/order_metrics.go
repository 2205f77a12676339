package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над заказами.
type OrderMetrics struct {
	// Счётчики операций по результату
	ordersCreated      prometheus.Counter
	ordersUpdated      prometheus.Counter
	ordersCanceled     prometheus.Counter
	statusTransitions  prometheus.Counter
	operationsFailed   *prometheus.CounterVec
	rollbacksTotal     prometheus.Counter
	operationDuration  *prometheus.HistogramVec
	reservedUnitsTotal prometheus.Counter
	releasedUnitsTotal prometheus.Counter
}

// NewOrderMetrics создаёт метрики заказов на стандартном регистраторе.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_orders_updated_total",
			Help: "Total number of orders updated",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		statusTransitions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_order_status_transitions_total",
			Help: "Total number of order status transitions",
		}),
		operationsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderstock_order_operations_failed_total",
			Help: "Total number of failed order operations grouped by operation",
		}, []string{"operation"}),
		rollbacksTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_order_rollbacks_total",
			Help: "Total number of rolled back order operations",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderstock_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		reservedUnitsTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_stock_units_reserved_total",
			Help: "Total number of stock units reserved",
		}),
		releasedUnitsTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderstock_stock_units_released_total",
			Help: "Total number of stock units released",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderUpdated увеличивает счётчик обновлённых заказов.
func (m *OrderMetrics) RecordOrderUpdated() {
	m.ordersUpdated.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordStatusTransition увеличивает счётчик переходов статуса.
func (m *OrderMetrics) RecordStatusTransition() {
	m.statusTransitions.Inc()
}

// RecordOperationFailed увеличивает счётчик неудачных операций.
func (m *OrderMetrics) RecordOperationFailed(operation string) {
	m.operationsFailed.WithLabelValues(operation).Inc()
}

// RecordRollback увеличивает счётчик откатов.
func (m *OrderMetrics) RecordRollback() {
	m.rollbacksTotal.Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUnitsReserved учитывает списанные со склада единицы.
func (m *OrderMetrics) RecordUnitsReserved(units int64) {
	m.reservedUnitsTotal.Add(float64(units))
}

// RecordUnitsReleased учитывает возвращённые на склад единицы.
func (m *OrderMetrics) RecordUnitsReleased(units int64) {
	m.releasedUnitsTotal.Add(float64(units))
}
