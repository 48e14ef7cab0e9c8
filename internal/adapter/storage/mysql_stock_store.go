package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

// MySQLStockStore is the durable counter. The quantity check and the
// mutation always share one transaction, so a counter is never observable
// below zero.
type MySQLStockStore struct {
	db *sql.DB
}

func NewMySQLStockStore(db *sql.DB) *MySQLStockStore {
	return &MySQLStockStore{db: db}
}

func (s *MySQLStockStore) Get(ctx context.Context, productKey string) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM stock WHERE product_key = ?`, productKey,
	).Scan(&quantity)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}

	return quantity, nil
}

func (s *MySQLStockStore) DecrementExclusive(ctx context.Context, productKey string, quantity int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM stock WHERE product_key = ? FOR UPDATE`, productKey,
	).Scan(&current)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("locked read: %w", err)
	}

	if current < quantity {
		return 0, domain.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock
		SET quantity = quantity - ?, version = version + 1, updated_at = NOW()
		WHERE product_key = ?`,
		quantity, productKey,
	)
	if err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return current - quantity, nil
}

func (s *MySQLStockStore) GetVersioned(ctx context.Context, productKey string) (domain.Stock, error) {
	var stock domain.Stock
	err := s.db.QueryRowContext(ctx, `
		SELECT product_key, quantity, version, created_at, updated_at
		FROM stock WHERE product_key = ?`, productKey,
	).Scan(&stock.ProductKey, &stock.Quantity, &stock.Version, &stock.CreatedAt, &stock.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query stock: %w", err)
	}

	return stock, nil
}

func (s *MySQLStockStore) DecrementVersioned(ctx context.Context, stock domain.Stock, quantity int) (int, error) {
	if stock.Quantity < quantity {
		return 0, domain.ErrInsufficientStock
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE stock
		SET quantity = quantity - ?, version = version + 1, updated_at = NOW()
		WHERE product_key = ? AND version = ?`,
		quantity, stock.ProductKey, stock.Version,
	)
	if err != nil {
		return 0, fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return 0, domain.ErrConflictRetry
	}

	return stock.Quantity - quantity, nil
}

func (s *MySQLStockStore) SetStock(ctx context.Context, productKey string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock (product_key, quantity, version)
		VALUES (?, ?, 0)
		ON DUPLICATE KEY UPDATE quantity = ?, version = version + 1`,
		productKey, quantity, quantity,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}
