package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) q(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// GetForUpdate читает товары по набору идентификаторов с эксклюзивной
// блокировкой строк (SELECT ... FOR UPDATE). ORDER BY id фиксирует порядок
// взятия блокировок по возрастанию идентификаторов; вместе с тем, что все
// вызывающие передают отсортированный набор, это исключает циклическое
// ожидание между конкурентными транзакциями.
func (r *productRepository) GetForUpdate(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	if _, ok := txFromContext(ctx); !ok {
		return nil, errors.New("locked product read requires an active unit of work")
	}

	rows, err := r.q(ctx).QueryContext(ctx, `
		SELECT id, name, description, stock_quantity, is_active, created_at, updated_at, deleted_at
		FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.StockQuantity,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	return products, nil
}

// AdjustStock атомарно меняет остаток на delta. CHECK-ограничение на
// stock_quantity страхует от ухода в минус даже при ошибке в движке.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int32) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, delta)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, id)
		}
		return fmt.Errorf("adjust stock for product %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	return nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, stock_quantity, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		product.ID, product.Name, product.Description, product.StockQuantity,
		product.IsActive, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, stock_quantity, is_active, created_at, updated_at, deleted_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.StockQuantity,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}

var _ domain.ProductRepository = (*productRepository)(nil)
