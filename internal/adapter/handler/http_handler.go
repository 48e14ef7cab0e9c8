package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/core/service"
)

type HTTPHandler struct {
	workflow        *service.OrderWorkflow
	defaultStrategy domain.Strategy
}

type OrderHTTPRequest struct {
	MemberID   string `json:"member_id"`
	ProductKey string `json:"product_key"`
	Quantity   int    `json:"quantity"`
	Strategy   string `json:"strategy,omitempty"`
}

type OrderHTTPResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Queued    bool   `json:"queued,omitempty"`
}

func NewHTTPHandler(workflow *service.OrderWorkflow, defaultStrategy domain.Strategy) *HTTPHandler {
	return &HTTPHandler{workflow: workflow, defaultStrategy: defaultStrategy}
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req OrderHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if req.MemberID == "" || req.ProductKey == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	strategy := h.defaultStrategy
	if req.Strategy != "" {
		parsed, err := domain.ParseStrategy(req.Strategy)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
				Success: false,
				Message: "unknown strategy",
			})
			return
		}
		strategy = parsed
	}

	placed, err := h.workflow.PlaceOrder(r.Context(), req.MemberID, req.ProductKey, req.Quantity, strategy)
	if err != nil {
		status, message := mapError(err)
		writeJSON(w, status, OrderHTTPResponse{
			Success: false,
			Message: message,
			OrderID: placed.OrderID,
		})
		return
	}

	writeJSON(w, http.StatusOK, OrderHTTPResponse{
		Success:   true,
		Message:   "order placed successfully",
		OrderID:   placed.OrderID,
		Remaining: placed.Remaining,
		Queued:    placed.Queued,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusGone, "sold out"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "unknown product"
	case errors.Is(err, domain.ErrExhausted), errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
