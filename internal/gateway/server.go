// Package gateway exposes the order orchestrator over JSON HTTP. It
// owns the wire shapes; the orders package stays transport-agnostic.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"storefront/internal/events"
	"storefront/internal/observability"
	"storefront/internal/orders"
)

// OrderCreator runs one order saga end to end.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req orders.OrderRequest) (*orders.Confirmation, error)
}

// LoginProxy forwards raw login payloads to the identity service and
// returns its status code and body unchanged.
type LoginProxy interface {
	Login(ctx context.Context, payload []byte) (int, []byte, error)
}

// Config wires a Server. Service is mandatory; everything else is
// optional and nil disables the corresponding surface.
type Config struct {
	Service OrderCreator
	Login   LoginProxy
	Hub     *events.Hub
	Limiter *orders.RateLimiter
	Metrics *observability.Metrics
	Logf    func(string, ...any)
}

// Server is the HTTP front door.
type Server struct {
	service  OrderCreator
	login    LoginProxy
	hub      *events.Hub
	limiter  *orders.RateLimiter
	metrics  *observability.Metrics
	logf     func(string, ...any)
	upgrader websocket.Upgrader
}

// NewServer constructs a Server from cfg.
func NewServer(cfg Config) *Server {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Server{
		service: cfg.Service,
		login:   cfg.Login,
		hub:     cfg.Hub,
		limiter: cfg.Limiter,
		metrics: cfg.Metrics,
		logf:    logf,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create_order", s.handleCreateOrder)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/health", s.handleHealth)
	if s.hub != nil {
		mux.HandleFunc("/ws/orders", s.handleOrdersFeed)
	}
	return mux
}

type lineItemWire struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderWire struct {
	Token           string         `json:"token"`
	CustomerID      string         `json:"customer_id"`
	Products        []lineItemWire `json:"products"`
	PaymentMethod   string         `json:"payment_method"`
	ShippingAddress string         `json:"shipping_address"`
	BillingAddress  string         `json:"billing_address"`
}

type orderLineWire struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type confirmationWire struct {
	OrderID      string          `json:"order_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Products     []orderLineWire `json:"products"`
	TotalAmount  float64         `json:"total_amount"`
	PaymentID    string          `json:"payment_id"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
}

type createOrderResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message,omitempty"`
	Confirmation *confirmationWire `json:"order_confirmation,omitempty"`
}

type errorResponse struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	Details        string   `json:"details,omitempty"`
	PaymentID      string   `json:"payment_id,omitempty"`
	ReservationIDs []string `json:"reservation_ids,omitempty"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error: "service shutting down",
			})
			return
		}
	}

	var wire createOrderWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid JSON body",
		})
		return
	}

	req := orders.OrderRequest{
		Token:           wire.Token,
		CustomerID:      wire.CustomerID,
		PaymentMethod:   wire.PaymentMethod,
		ShippingAddress: wire.ShippingAddress,
		BillingAddress:  wire.BillingAddress,
	}
	for _, item := range wire.Products {
		req.Items = append(req.Items, orders.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	confirmation, err := s.service.CreateOrder(r.Context(), req)
	if err != nil {
		s.writeOrderError(w, err)
		return
	}

	lines := make([]orderLineWire, 0, len(confirmation.Lines))
	for _, line := range confirmation.Lines {
		lines = append(lines, orderLineWire{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	s.writeJSON(w, http.StatusCreated, createOrderResponse{
		Success: true,
		Message: "Order created successfully",
		Confirmation: &confirmationWire{
			OrderID:      confirmation.OrderID,
			CustomerID:   confirmation.CustomerID,
			CustomerName: confirmation.CustomerName,
			Products:     lines,
			TotalAmount:  confirmation.TotalAmount,
			PaymentID:    confirmation.PaymentID,
			Status:       confirmation.Status,
			CreatedAt:    confirmation.CreatedAt.Format(time.RFC3339),
		},
	})
}

func (s *Server) writeOrderError(w http.ResponseWriter, err error) {
	var orderErr *orders.Error
	if !errors.As(err, &orderErr) {
		s.logf("create order: unclassified error: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
		return
	}

	resp := errorResponse{
		Error:   orderErr.Message,
		Details: orderErr.Detail,
	}
	status := http.StatusBadRequest
	switch orderErr.Category {
	case orders.CategoryAuthentication:
		status = http.StatusUnauthorized
	case orders.CategoryOrderPersistence:
		// The payment went through and the reservations are still
		// held; the caller gets the ids so support can intervene.
		status = http.StatusInternalServerError
		resp.PaymentID = orderErr.PaymentID
		resp.ReservationIDs = orderErr.ReservationIDs
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.login == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "login is not available",
		})
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body",
		})
		return
	}

	status, body, err := s.login.Login(r.Context(), payload)
	if err != nil {
		s.logf("login proxy: %v", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "Authentication failed",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api_gateway",
	})
}

// handleOrdersFeed upgrades to a WebSocket and streams order lifecycle
// events until the peer goes away. The read loop exists only to notice
// disconnects; inbound frames are dropped.
func (s *Server) handleOrdersFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("websocket upgrade: %v", err)
		return
	}

	s.hub.Register <- conn
	defer func() {
		s.hub.Unregister <- conn
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logf("write response: %v", err)
	}
}
