package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) q(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.db
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO orders (
			id, name, description, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		order.ID, order.Name, order.Description, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := r.insertItems(ctx, order.ID, order.Items); err != nil {
		return err
	}

	return nil
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE orders
		SET name = $1,
		    description = $2,
		    status = $3,
		    updated_at = $4
		WHERE id = $5
	`,
		order.Name, order.Description, string(order.Status), order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
	}

	return nil
}

// ReplaceItems полностью заменяет состав заказа: DELETE старых позиций и
// INSERT новых (sync, не merge).
func (r *orderRepository) ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if _, err := r.q(ctx).ExecContext(ctx, `
		DELETE FROM order_items WHERE order_id = $1
	`, orderID); err != nil {
		return fmt.Errorf("delete stale order items: %w", err)
	}

	return r.insertItems(ctx, orderID, items)
}

func (r *orderRepository) SoftDelete(ctx context.Context, orderID string, at time.Time) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE orders
		SET deleted_at = $1,
		    updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, at, orderID)
	if err != nil {
		return fmt.Errorf("soft delete order: %w", err)
	}
	// affected == 0 означает, что заказ уже был удалён; это не ошибка.
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	return nil
}

// Get возвращает заказ включая мягко удалённые: отменённый заказ должен
// оставаться адресуемым для идемпотентного удаления.
func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	var status string

	err := r.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, status, created_at, updated_at, deleted_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.Name, &order.Description, &status,
		&order.CreatedAt, &order.UpdatedAt, &order.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `
		SELECT id, name, description, status, created_at, updated_at, deleted_at
		FROM orders
		WHERE deleted_at IS NULL
	`
	args := make([]any, 0, 5)

	if filter.Name != nil {
		args = append(args, "%"+*filter.Name+"%")
		query += " AND name ILIKE $" + strconv.Itoa(len(args))
	}
	if filter.Description != nil {
		args = append(args, "%"+*filter.Description+"%")
		query += " AND description ILIKE $" + strconv.Itoa(len(args))
	}
	if filter.CreatedOn != nil {
		args = append(args, filter.CreatedOn.Format("2006-01-02"))
		query += " AND created_at::date = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Pagination != nil {
		args = append(args, filter.Pagination.RowsPerPage)
		query += " LIMIT $" + strconv.Itoa(len(args))
		args = append(args, (filter.Pagination.Page-1)*filter.Pagination.RowsPerPage)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID, &order.Name, &order.Description, &status,
			&order.CreatedAt, &order.UpdatedAt, &order.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)

		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) insertItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	for _, item := range items {
		if _, err := r.q(ctx).ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, quantity, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5)
		`,
			orderID, item.ProductID, item.Quantity, item.CreatedAt, item.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
		SELECT order_id, product_id, quantity, created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, product_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
