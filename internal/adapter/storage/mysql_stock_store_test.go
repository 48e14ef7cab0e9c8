package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockreserve?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func seedStock(t *testing.T, store *MySQLStockStore, productKey string, quantity int) {
	t.Helper()
	if err := store.SetStock(context.Background(), productKey, quantity); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func TestDecrementExclusive_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)
	key := "excl-" + uuid.New().String()
	seedStock(t, store, key, 10)

	remaining, err := store.DecrementExclusive(context.Background(), key, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 7 {
		t.Errorf("expected remaining 7, got %d", remaining)
	}

	quantity, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quantity != 7 {
		t.Errorf("expected stored quantity 7, got %d", quantity)
	}
}

func TestDecrementExclusive_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)
	key := "excl-" + uuid.New().String()
	seedStock(t, store, key, 2)

	_, err := store.DecrementExclusive(context.Background(), key, 5)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}

	quantity, _ := store.Get(context.Background(), key)
	if quantity != 2 {
		t.Errorf("expected quantity unchanged at 2, got %d", quantity)
	}
}

func TestDecrementExclusive_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)

	_, err := store.DecrementExclusive(context.Background(), "missing-"+uuid.New().String(), 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestDecrementExclusive_Concurrent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)
	key := "excl-conc-" + uuid.New().String()
	initialStock := 20
	totalRequests := 50
	seedStock(t, store, key, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.DecrementExclusive(context.Background(), key, 1)
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	quantity, _ := store.Get(context.Background(), key)
	if quantity != 0 {
		t.Errorf("expected quantity 0, got %d", quantity)
	}
}

func TestDecrementVersioned_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)
	key := "ver-" + uuid.New().String()
	seedStock(t, store, key, 10)

	stock, err := store.GetVersioned(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, err := store.DecrementVersioned(context.Background(), stock, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 6 {
		t.Errorf("expected remaining 6, got %d", remaining)
	}

	updated, err := store.GetVersioned(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != stock.Version+1 {
		t.Errorf("expected version bump to %d, got %d", stock.Version+1, updated.Version)
	}
}

func TestDecrementVersioned_StaleVersionConflicts(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	store := NewMySQLStockStore(db)
	key := "ver-" + uuid.New().String()
	seedStock(t, store, key, 10)

	stale, err := store.GetVersioned(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A competing writer bumps the version behind our back.
	if _, err := store.DecrementExclusive(context.Background(), key, 1); err != nil {
		t.Fatalf("competing decrement failed: %v", err)
	}

	_, err = store.DecrementVersioned(context.Background(), stale, 1)
	if !errors.Is(err, domain.ErrConflictRetry) {
		t.Errorf("expected ErrConflictRetry, got: %v", err)
	}

	quantity, _ := store.Get(context.Background(), key)
	if quantity != 9 {
		t.Errorf("expected quantity 9 after single decrement, got %d", quantity)
	}
}

func TestCreateOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	orders := NewMySQLOrderStore(db)
	now := time.Now()
	order := domain.Order{
		ID:         uuid.New().String(),
		MemberID:   "member-1",
		ProductKey: "item-1",
		Quantity:   1,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := orders.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	var status string
	err := db.QueryRow(`SELECT status FROM orders WHERE id = ?`, order.ID).Scan(&status)
	if err != nil {
		t.Fatalf("query order: %v", err)
	}
	if status != string(domain.OrderStatusPending) {
		t.Errorf("expected status %s, got %s", domain.OrderStatusPending, status)
	}
}
