package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewOrderMetrics(t *testing.T) {
	metrics := NewOrderMetrics()

	if metrics == nil {
		t.Fatal("NewOrderMetrics should not return nil")
	}

	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter should not be nil")
	}
	if metrics.ordersUpdated == nil {
		t.Error("ordersUpdated counter should not be nil")
	}
	if metrics.ordersCanceled == nil {
		t.Error("ordersCanceled counter should not be nil")
	}
	if metrics.statusTransitions == nil {
		t.Error("statusTransitions counter should not be nil")
	}
	if metrics.operationsFailed == nil {
		t.Error("operationsFailed counter vec should not be nil")
	}
	if metrics.rollbacksTotal == nil {
		t.Error("rollbacksTotal counter should not be nil")
	}
	if metrics.operationDuration == nil {
		t.Error("operationDuration histogram vec should not be nil")
	}
	if metrics.reservedUnitsTotal == nil {
		t.Error("reservedUnitsTotal counter should not be nil")
	}
	if metrics.releasedUnitsTotal == nil {
		t.Error("releasedUnitsTotal counter should not be nil")
	}
}

func TestNewOrderMetrics_RepeatedRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(reg)
	second := newOrderMetricsWithRegisterer(reg)

	first.RecordOrderCreated()
	second.RecordOrderCreated()

	if got := testutil.ToFloat64(first.ordersCreated); got != 2 {
		t.Fatalf("both instances must share one collector, got %v", got)
	}
}

func TestOrderMetrics_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newOrderMetricsWithRegisterer(reg)

	metrics.RecordOrderCreated()
	metrics.RecordOrderUpdated()
	metrics.RecordOrderCanceled()
	metrics.RecordStatusTransition()
	metrics.RecordOperationFailed("create_order")
	metrics.RecordRollback()
	metrics.RecordOperationDuration("create_order", 50*time.Millisecond)
	metrics.RecordUnitsReserved(7)
	metrics.RecordUnitsReleased(3)

	if got := testutil.ToFloat64(metrics.ordersCreated); got != 1 {
		t.Errorf("ordersCreated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.operationsFailed.WithLabelValues("create_order")); got != 1 {
		t.Errorf("operationsFailed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.reservedUnitsTotal); got != 7 {
		t.Errorf("reservedUnitsTotal = %v, want 7", got)
	}
	if got := testutil.ToFloat64(metrics.releasedUnitsTotal); got != 3 {
		t.Errorf("releasedUnitsTotal = %v, want 3", got)
	}
}
