package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderstock/internal/domain"
)

type txContextKey struct{}

// txFromContext достаёт активную транзакцию из контекста, если она есть.
func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}

// querier объединяет *sql.DB и *sql.Tx: репозитории работают через него и
// не знают, идёт ли вызов внутри транзакции.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// unitOfWork размечает транзакционную границу поверх *sql.DB. Begin кладёт
// открытую *sql.Tx в контекст; репозитории, получив такой контекст,
// выполняются внутри неё. Блокировки строк живут до Commit/Rollback.
type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork создаёт PostgreSQL-реализацию UnitOfWork.
func NewUnitOfWork(store *Store) domain.UnitOfWork {
	return &unitOfWork{db: store.DB()}
}

// Begin открывает транзакцию и возвращает контекст, несущий её.
func (u *unitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if _, ok := txFromContext(ctx); ok {
		return ctx, errors.New("unit of work scopes do not nest")
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, fmt.Errorf("begin tx: %w", err)
	}
	return context.WithValue(ctx, txContextKey{}, tx), nil
}

// Commit применяет все эффекты с момента Begin.
func (u *unitOfWork) Commit(ctx context.Context) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return errors.New("commit without active unit of work")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback отбрасывает все эффекты с момента Begin. Повторный Rollback после
// Commit безвреден: sql.ErrTxDone проглатывается.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return errors.New("rollback without active unit of work")
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}
