package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

type MySQLOrderStore struct {
	db *sql.DB
}

func NewMySQLOrderStore(db *sql.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

func (s *MySQLOrderStore) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, member_id, product_key, quantity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.MemberID, order.ProductKey, order.Quantity, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
