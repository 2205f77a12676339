package domain

import (
	"errors"
	"testing"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending to shipped skips a step", OrderStatusPending, OrderStatusShipped, false},
		{"delivered has no forward transition", OrderStatusDelivered, OrderStatusPending, false},
		{"backward transition is forbidden", OrderStatusShipped, OrderStatusProcessing, false},
		{"cancel from pending", OrderStatusPending, OrderStatusCancelled, true},
		{"cancel from delivered", OrderStatusDelivered, OrderStatusCancelled, true},
		{"cancel of cancelled is a no-op", OrderStatusCancelled, OrderStatusCancelled, true},
		{"no exit from cancelled", OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	for _, status := range []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled,
	} {
		if !status.Valid() {
			t.Fatalf("status %s should be valid", status)
		}
	}
	if OrderStatus("unknown").Valid() {
		t.Fatal("unknown status should not be valid")
	}
}

func TestOrder_CanBeModified(t *testing.T) {
	order := Order{Status: OrderStatusDelivered}
	if !order.CanBeModified() {
		t.Fatal("delivered order should be modifiable")
	}

	order.Status = OrderStatusCancelled
	if order.CanBeModified() {
		t.Fatal("cancelled order should not be modifiable")
	}
}

func TestOrder_ValidateInvariants(t *testing.T) {
	order := Order{
		Name:   "",
		Status: OrderStatus("bogus"),
		Items: []OrderItem{
			{ProductID: "p1", Quantity: 0},
			{ProductID: "p1", Quantity: 2},
		},
	}

	errs := order.ValidateInvariants()

	wantErrs := []error{ErrOrderNameRequired, ErrOrderStatusInvalid, ErrItemQtyInvalid, ErrDuplicateOrderItem}
	for _, want := range wantErrs {
		found := false
		for _, got := range errs {
			if errors.Is(got, want) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %v among invariant violations, got %v", want, errs)
		}
	}

	valid := Order{
		Name:   "order",
		Status: OrderStatusPending,
		Items:  []OrderItem{{ProductID: "p1", Quantity: 1}},
	}
	if errs := valid.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrInsufficientStock) {
		t.Fatal("ErrInsufficientStock should be a domain error")
	}
	if IsDomainError(errors.New("connection refused")) {
		t.Fatal("infrastructure error should not be a domain error")
	}
}
