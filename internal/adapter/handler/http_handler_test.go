package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/core/service"
)

type stubStockStore struct {
	mu     sync.Mutex
	stocks map[string]int
}

func (s *stubStockStore) Get(ctx context.Context, productKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.stocks[productKey]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return quantity, nil
}

func (s *stubStockStore) DecrementExclusive(ctx context.Context, productKey string, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.stocks[productKey]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if current < quantity {
		return 0, domain.ErrInsufficientStock
	}
	s.stocks[productKey] = current - quantity
	return current - quantity, nil
}

func (s *stubStockStore) GetVersioned(ctx context.Context, productKey string) (domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quantity, ok := s.stocks[productKey]
	if !ok {
		return domain.Stock{}, domain.ErrNotFound
	}
	return domain.Stock{ProductKey: productKey, Quantity: quantity}, nil
}

func (s *stubStockStore) DecrementVersioned(ctx context.Context, stock domain.Stock, quantity int) (int, error) {
	return s.DecrementExclusive(context.Background(), stock.ProductKey, quantity)
}

func (s *stubStockStore) SetStock(ctx context.Context, productKey string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[productKey] = quantity
	return nil
}

type stubEngine struct{}

func (stubEngine) EnsurePopulated(ctx context.Context, productKey string, loader func(context.Context) (int, error)) error {
	return nil
}

func (stubEngine) DecrementAtomic(ctx context.Context, productKey string, quantity int) (int, error) {
	return 0, domain.ErrNotFound
}

func (stubEngine) Restore(ctx context.Context, productKey string, quantity int) error { return nil }

type stubLedger struct{}

func (stubLedger) Result(ctx context.Context, key string) (int, bool, error) { return 0, false, nil }
func (stubLedger) Record(ctx context.Context, key string, remaining int) error {
	return nil
}
func (stubLedger) Reserve(ctx context.Context, key string) (bool, error) { return true, nil }
func (stubLedger) Release(ctx context.Context, key string) error         { return nil }

type stubOrderStore struct{}

func (stubOrderStore) CreateOrder(ctx context.Context, order domain.Order) error { return nil }

type stubSequencer struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *stubSequencer) Enqueue(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func newTestHandler(stocks map[string]int) (*HTTPHandler, *stubSequencer) {
	store := &stubStockStore{stocks: stocks}
	coord := service.NewStockCoordinator(store, stubEngine{}, stubLedger{})
	seq := &stubSequencer{}
	workflow := service.NewOrderWorkflow(stubOrderStore{}, coord, seq)
	return NewHTTPHandler(workflow, domain.StrategyDirect), seq
}

func postOrder(t *testing.T, h *HTTPHandler, body string) (*httptest.ResponseRecorder, OrderHTTPResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	var resp OrderHTTPResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func TestPlaceOrderHTTP_Success(t *testing.T) {
	h, _ := newTestHandler(map[string]int{"item-1": 10})

	rec, resp := postOrder(t, h, `{"member_id":"member-1","product_key":"item-1","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Error("expected success response")
	}
	if resp.OrderID == "" {
		t.Error("expected non-empty order ID")
	}
	if resp.Remaining != 8 {
		t.Errorf("expected remaining 8, got %d", resp.Remaining)
	}
}

func TestPlaceOrderHTTP_SoldOut(t *testing.T) {
	h, _ := newTestHandler(map[string]int{"item-1": 1})

	rec, resp := postOrder(t, h, `{"member_id":"member-1","product_key":"item-1","quantity":5}`)
	if rec.Code != http.StatusGone {
		t.Errorf("expected 410, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("expected failure response")
	}
	if resp.OrderID == "" {
		t.Error("expected order ID even on business failure")
	}
}

func TestPlaceOrderHTTP_UnknownProduct(t *testing.T) {
	h, _ := newTestHandler(map[string]int{})

	rec, _ := postOrder(t, h, `{"member_id":"member-1","product_key":"nope","quantity":1}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPlaceOrderHTTP_QueuedAccepted(t *testing.T) {
	h, seq := newTestHandler(map[string]int{"item-1": 10})

	rec, resp := postOrder(t, h, `{"member_id":"member-1","product_key":"item-1","quantity":1,"strategy":"queued"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Queued {
		t.Error("expected queued response")
	}
	if len(seq.messages) != 1 {
		t.Errorf("expected 1 enqueued message, got %d", len(seq.messages))
	}
}

func TestPlaceOrderHTTP_BadRequests(t *testing.T) {
	h, _ := newTestHandler(map[string]int{"item-1": 10})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing member", `{"product_key":"item-1","quantity":1}`},
		{"zero quantity", `{"member_id":"m","product_key":"item-1","quantity":0}`},
		{"unknown strategy", `{"member_id":"m","product_key":"item-1","quantity":1,"strategy":"pessimal"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := postOrder(t, h, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestPlaceOrderHTTP_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(map[string]int{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(map[string]int{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
