package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (s *stubPublisher) PublishOrderEvent(_ context.Context, event domain.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *stubPublisher) published() []domain.OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OrderEvent(nil), s.events...)
}

type coordinatorEnv struct {
	*engineEnv
	publisher   *stubPublisher
	coordinator *Coordinator
}

func newCoordinatorEnv(t *testing.T) *coordinatorEnv {
	t.Helper()

	env := newEngineEnv(t)
	publisher := &stubPublisher{}
	return &coordinatorEnv{
		engineEnv:   env,
		publisher:   publisher,
		coordinator: NewCoordinatorWithoutMetrics(env.uow, env.engine, publisher, nil),
	}
}

func TestCoordinator_CreateCommitsAndPublishes(t *testing.T) {
	env := newCoordinatorEnv(t)
	env.seedProduct(t, "A", 10, true)

	order, err := env.coordinator.CreateOrder(context.Background(), CreateOrderInput{
		Name:  "committed",
		Items: []ItemInput{{ProductID: "A", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := env.stock(t, "A"); got != 8 {
		t.Fatalf("stock A = %d, want 8", got)
	}

	events := env.publisher.published()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != domain.EventOrderCreated || events[0].OrderID != order.ID {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestCoordinator_EngineErrorRollsBackAndReraises(t *testing.T) {
	env := newCoordinatorEnv(t)
	env.seedProduct(t, "A", 3, true)

	_, err := env.coordinator.CreateOrder(context.Background(), CreateOrderInput{
		Name:  "too big",
		Items: []ItemInput{{ProductID: "A", Quantity: 5}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("original error must be re-raised unchanged, got %v", err)
	}

	if got := env.stock(t, "A"); got != 3 {
		t.Fatalf("stock after rollback = %d, want 3", got)
	}
	if events := env.publisher.published(); len(events) != 0 {
		t.Fatalf("failed operation must not publish events, got %d", len(events))
	}

	// После отката можно открывать новые транзакции.
	if _, err := env.coordinator.CreateOrder(context.Background(), CreateOrderInput{
		Name:  "fits",
		Items: []ItemInput{{ProductID: "A", Quantity: 3}},
	}); err != nil {
		t.Fatalf("create after rollback: %v", err)
	}
}

func TestCoordinator_MutationInvalidatesCaches(t *testing.T) {
	env := newCoordinatorEnv(t)
	env.seedProduct(t, "A", 10, true)

	ctx := context.Background()
	created, err := env.coordinator.CreateOrder(ctx, CreateOrderInput{
		Name:  "cache me",
		Items: []ItemInput{{ProductID: "A", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Прогреваем кэш одиночного заказа и списка.
	if _, err := env.coordinator.Find(ctx, created.ID); err != nil {
		t.Fatalf("warm find: %v", err)
	}
	if _, err := env.coordinator.List(ctx, domain.OrderFilter{}); err != nil {
		t.Fatalf("warm list: %v", err)
	}

	updated, err := env.coordinator.UpdateOrder(ctx, UpdateOrderInput{
		OrderID: created.ID,
		Name:    "renamed",
		Items:   []ItemInput{{ProductID: "A", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// Чтения после мутации видят новое состояние, а не прогретый кэш.
	found, err := env.coordinator.Find(ctx, created.ID)
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if found.Name != "renamed" {
		t.Fatalf("stale cache after mutation: %q", found.Name)
	}
	list, err := env.coordinator.List(ctx, domain.OrderFilter{})
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if len(list) != 1 || list[0].Name != "renamed" {
		t.Fatalf("stale list after mutation: %+v", list)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatal("updated_at must move forward")
	}
}

func TestCoordinator_DeletePublishesOnceAndStaysIdempotent(t *testing.T) {
	env := newCoordinatorEnv(t)
	env.seedProduct(t, "A", 10, true)

	ctx := context.Background()
	created, err := env.coordinator.CreateOrder(ctx, CreateOrderInput{
		Name:  "short lived",
		Items: []ItemInput{{ProductID: "A", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.coordinator.DeleteOrder(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.coordinator.DeleteOrder(ctx, created.ID); err != nil {
		t.Fatalf("repeated delete must succeed: %v", err)
	}

	if got := env.stock(t, "A"); got != 10 {
		t.Fatalf("stock must be restored exactly once, got %d", got)
	}

	var canceled int
	for _, event := range env.publisher.published() {
		if event.Type == domain.EventOrderCanceled {
			canceled++
		}
	}
	if canceled != 1 {
		t.Fatalf("expected exactly one cancel event, got %d", canceled)
	}
}

func TestCoordinator_StatusChangePublishesEvent(t *testing.T) {
	env := newCoordinatorEnv(t)

	ctx := context.Background()
	if err := env.inTx(t, func(ctx context.Context) error {
		return env.orders.Create(ctx, domain.Order{
			ID:     "order-status",
			Name:   "manual",
			Status: domain.OrderStatusPending,
		})
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	order, err := env.coordinator.UpdateOrderStatus(ctx, "order-status", domain.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("status change: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected status: %s", order.Status)
	}

	events := env.publisher.published()
	if len(events) != 1 || events[0].Type != domain.EventOrderStatusChanged {
		t.Fatalf("expected one status_changed event, got %+v", events)
	}
	if events[0].Status != string(domain.OrderStatusProcessing) {
		t.Fatalf("event must carry the new status, got %s", events[0].Status)
	}
}

func TestCoordinator_PublisherFailureDoesNotFailOperation(t *testing.T) {
	env := newCoordinatorEnv(t)
	env.seedProduct(t, "A", 10, true)
	env.publisher.err = errors.New("broker is down")

	order, err := env.coordinator.CreateOrder(context.Background(), CreateOrderInput{
		Name:  "despite broker",
		Items: []ItemInput{{ProductID: "A", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("publish failure must not fail a committed operation: %v", err)
	}
	if _, err := env.orders.Get(context.Background(), order.ID); err != nil {
		t.Fatalf("order must be committed: %v", err)
	}
}

func TestCoordinator_WorksWithoutPublisher(t *testing.T) {
	engineEnv := newEngineEnv(t)
	engineEnv.seedProduct(t, "A", 10, true)
	coordinator := NewCoordinatorWithoutMetrics(engineEnv.uow, engineEnv.engine, nil, nil)

	if _, err := coordinator.CreateOrder(context.Background(), CreateOrderInput{
		Name:  "no kafka",
		Items: []ItemInput{{ProductID: "A", Quantity: 1}},
	}); err != nil {
		t.Fatalf("create without publisher: %v", err)
	}
}
