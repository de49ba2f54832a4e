// Package api exposes the engine's operation set over HTTP and broadcasts
// state transitions over WebSocket. Request/response framing lives here;
// the engine itself is transport-agnostic.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/engine"
	"github.com/papertrade/perp-engine/internal/model"
	"github.com/papertrade/perp-engine/internal/risk"
)

// Server handles the HTTP operation set.
type Server struct {
	engine *engine.Engine
	hub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewServer creates an API server. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewServer(e *engine.Engine, hub *WSHub) *Server {
	return &Server{engine: e, hub: hub}
}

// Routes registers the operation set under the given router.
func (s *Server) Routes(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	r.Get("/price", s.GetPrice)
	r.Get("/account", s.GetAccount)
	r.Put("/account/leverage", s.SetLeverage)
	r.Post("/orders", s.SubmitOrder)
	r.Get("/orders", s.ListOrders)
	r.Delete("/orders/{orderID}", s.CancelOrder)
	r.Get("/position", s.GetPosition)
	r.Delete("/position", s.ClosePosition)
	r.Get("/trades", s.ListTrades)
}

// --- Request/Response types ---

// SubmitOrderRequest is the JSON body for POST /orders. A nil price means
// a market order.
type SubmitOrderRequest struct {
	Side     string           `json:"side"`
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// SubmitOrderResponse carries the assigned order id.
type SubmitOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

// LeverageRequest is the JSON body for PUT /account/leverage.
type LeverageRequest struct {
	Leverage int64 `json:"leverage"`
}

// ClosePositionRequest is the optional JSON body for DELETE /position.
// With a price the close rests as a limit order; without, it executes at
// market.
type ClosePositionRequest struct {
	Price *decimal.Decimal `json:"price,omitempty"`
}

// --- Handlers ---

// GetPrice handles GET /api/v1/price
func (s *Server) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.engine.Price()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"price": price})
}

// GetAccount handles GET /api/v1/account
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Account())
}

// SetLeverage handles PUT /api/v1/account/leverage
func (s *Server) SetLeverage(w http.ResponseWriter, r *http.Request) {
	var req LeverageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetLeverage(req.Leverage); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"leverage": req.Leverage})
}

// SubmitOrder handles POST /api/v1/orders
func (s *Server) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.engine.SubmitOrder(sideFromString(req.Side), req.Quantity, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitOrderResponse{OrderID: id})
}

// ListOrders handles GET /api/v1/orders
func (s *Server) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// CancelOrder handles DELETE /api/v1/orders/{orderID}
func (s *Server) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if err := s.engine.CancelOrder(id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cancelled": id})
}

// GetPosition handles GET /api/v1/position
// A flat position returns {"side":"FLAT"} rather than an error.
func (s *Server) GetPosition(w http.ResponseWriter, r *http.Request) {
	view := s.engine.Position()
	if view == nil {
		writeJSON(w, http.StatusOK, map[string]model.PositionSide{"side": model.Flat})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ClosePosition handles DELETE /api/v1/position
func (s *Server) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req ClosePositionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	id, err := s.engine.ClosePosition(req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitOrderResponse{OrderID: id})
}

// ListTrades handles GET /api/v1/trades
func (s *Server) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.engine.Trades()
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// --- Helpers ---

func sideFromString(s string) model.Side {
	switch s {
	case "BUY", "buy", "Buy":
		return model.SideBuy
	case "SELL", "sell", "Sell":
		return model.SideSell
	}
	return model.Side(s) // engine rejects unknown sides
}

// writeEngineError maps engine error kinds to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrNoPrice),
		errors.Is(err, risk.ErrOrderTooSmall),
		errors.Is(err, risk.ErrPositionLimitExceeded):
		status = http.StatusConflict
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
