package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"storefront/internal/events"
	"storefront/internal/observability"
	"storefront/internal/saga"
)

// AuditRecord is the durable trace of one finished saga, written for
// operator visibility. For an uncompensated post-payment failure it
// carries the orphaned payment and reservation ids.
type AuditRecord struct {
	SagaID         string
	CustomerID     string
	UserID         string
	Status         string
	Category       string
	TotalAmount    float64
	OrderID        string
	PaymentID      string
	ReservationIDs []string
	Detail         string
}

// AuditRecorder persists finished-saga records.
type AuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// ServiceConfig wires a Service. Only Clients is required; Audit, Events,
// and Metrics are optional, and Now/NewSagaID are test hooks.
type ServiceConfig struct {
	Clients   Collaborators
	Audit     AuditRecorder
	Events    events.Publisher
	Metrics   *observability.Metrics
	Logf      func(format string, args ...any)
	Now       func() time.Time
	NewSagaID func() string
}

// Service orchestrates order creation across the five collaborators: it
// drives the step pipeline, accumulates reservations and the running
// total, and cancels accumulated reservations when a pre-payment step
// fails. A failure after payment is not compensated; the caller gets the
// orphaned payment and reservation ids instead.
type Service struct {
	clients   Collaborators
	audit     AuditRecorder
	events    events.Publisher
	metrics   *observability.Metrics
	logf      func(format string, args ...any)
	now       func() time.Time
	newSagaID func() string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newSagaID := cfg.NewSagaID
	if newSagaID == nil {
		newSagaID = uuid.NewString
	}
	return &Service{
		clients:   cfg.Clients,
		audit:     cfg.Audit,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		logf:      logf,
		now:       now,
		newSagaID: newSagaID,
	}
}

// sagaState accumulates the intermediate results of one request. It lives
// only for the lifetime of the request; nothing survives a crash.
type sagaState struct {
	sagaID         string
	userID         string
	customer       Customer
	lines          []OrderLine
	reservationIDs []string
	total          float64
	payment        Payment
}

// CreateOrder runs the full pipeline for one request: validate,
// authenticate, validate customer, resolve and reserve each line item in
// order, charge, persist the order, confirm reservations. The returned
// error, when non-nil, is always a *Error.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (*Confirmation, error) {
	state := &sagaState{sagaID: s.newSagaID()}

	if err := validateRequest(req); err != nil {
		s.finishAborted(ctx, state, req, err)
		return nil, err
	}

	steps := []saga.Step{
		{
			Name: "authenticate",
			Run: func(ctx context.Context) error {
				span := s.metrics.Start("authenticate")
				id, err := s.clients.Auth.Verify(ctx, req.Token)
				span.End(err)
				if err != nil {
					return failed(CategoryAuthentication, "Authentication failed", err.Error())
				}
				state.userID = id.UserID
				return nil
			},
		},
		{
			Name: "validate_customer",
			Run: func(ctx context.Context) error {
				span := s.metrics.Start("validate_customer")
				customer, err := s.clients.Customers.Validate(ctx, req.CustomerID)
				span.End(err)
				if err != nil {
					return failed(CategoryCustomerInvalid, "Customer validation failed", err.Error())
				}
				state.customer = customer
				return nil
			},
		},
	}

	for _, item := range req.Items {
		steps = append(steps, s.reserveStep(item, req.CustomerID, state))
	}

	steps = append(steps, saga.Step{
		Name: "process_payment",
		Run: func(ctx context.Context) error {
			span := s.metrics.Start("process_payment")
			payment, err := s.clients.Payments.Process(ctx, req.CustomerID, state.total, req.PaymentMethod)
			span.End(err)
			if err != nil {
				return failed(CategoryPayment, "Payment processing failed", err.Error())
			}
			state.payment = payment
			return nil
		},
	})

	runner := saga.Runner{Logf: s.logf}
	if err := runner.Execute(ctx, steps); err != nil {
		var sagaErr *Error
		if !errors.As(err, &sagaErr) {
			sagaErr = failed(CategoryValidation, "Order creation failed", err.Error())
		}
		s.finishAborted(ctx, state, req, sagaErr)
		return nil, sagaErr
	}

	// Past this point the charge is committed and nothing unwinds it: the
	// protocol has no refund operation, and a persistence failure leaves
	// both the payment and the reservations standing.
	orderID, err := s.persistOrder(ctx, req, state)
	if err != nil {
		s.finishAborted(ctx, state, req, err)
		return nil, err
	}

	s.confirmReservations(ctx, state)

	confirmation := &Confirmation{
		OrderID:        orderID,
		CustomerID:     req.CustomerID,
		CustomerName:   state.customer.Name,
		Lines:          state.lines,
		TotalAmount:    state.total,
		PaymentID:      state.payment.PaymentID,
		TransactionID:  state.payment.TransactionID,
		ReservationIDs: state.reservationIDs,
		Status:         "confirmed",
		CreatedAt:      s.now().UTC(),
	}

	s.finishConfirmed(ctx, state, req, confirmation)
	return confirmation, nil
}

// reserveStep resolves price and availability for one line item and
// reserves it. Its compensation cancels exactly the reservation this step
// obtained.
func (s *Service) reserveStep(item LineItem, customerID string, state *sagaState) saga.Step {
	var reservationID string
	return saga.Step{
		Name: "reserve " + item.ProductID,
		Run: func(ctx context.Context) error {
			span := s.metrics.Start("get_product")
			product, err := s.clients.Inventory.GetProduct(ctx, item.ProductID)
			span.End(err)
			if err != nil {
				return failedf(CategoryProductNotFound, err.Error(), "Product %s not found", item.ProductID)
			}

			span = s.metrics.Start("check_availability")
			availability, err := s.clients.Inventory.CheckAvailability(ctx, item.ProductID, item.Quantity)
			span.End(err)
			if err != nil {
				return failedf(CategoryAvailability, err.Error(), "Product %s is not available", item.ProductID)
			}
			if !availability.Available {
				detail := fmt.Sprintf("insufficient stock: available %d, requested %d",
					availability.AvailableQuantity, availability.RequestedQuantity)
				return failedf(CategoryAvailability, detail, "Product %s is not available", item.ProductID)
			}

			span = s.metrics.Start("reserve")
			id, err := s.clients.Inventory.Reserve(ctx, item.ProductID, item.Quantity, customerID)
			span.End(err)
			if err != nil {
				return failedf(CategoryReservation, err.Error(), "Failed to reserve stock for product %s", item.ProductID)
			}

			reservationID = id
			state.reservationIDs = append(state.reservationIDs, id)
			state.lines = append(state.lines, OrderLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
			state.total += product.Price * float64(item.Quantity)
			return nil
		},
		Compensate: func(ctx context.Context) error {
			span := s.metrics.Start("cancel_reservation")
			err := s.clients.Inventory.Cancel(ctx, reservationID)
			span.End(err)
			return err
		},
	}
}

// persistOrder builds the order snapshot and writes it to the ledger. The
// snapshot re-fetches each product's price, so a catalog change between
// reservation and persistence can make the persisted line prices drift
// from the total computed at reservation time.
func (s *Service) persistOrder(ctx context.Context, req OrderRequest, state *sagaState) (string, *Error) {
	snapshot := OrderSnapshot{
		CustomerID:      req.CustomerID,
		TotalAmount:     state.total,
		PaymentID:       state.payment.PaymentID,
		ReservationIDs:  state.reservationIDs,
		Status:          "confirmed",
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	for _, item := range req.Items {
		span := s.metrics.Start("get_product")
		product, err := s.clients.Inventory.GetProduct(ctx, item.ProductID)
		span.End(err)
		if err != nil {
			return "", s.persistenceFailure(state, err.Error())
		}
		snapshot.Lines = append(snapshot.Lines, OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
	}

	span := s.metrics.Start("create_order")
	orderID, err := s.clients.Orders.Create(ctx, snapshot)
	span.End(err)
	if err != nil {
		return "", s.persistenceFailure(state, err.Error())
	}
	return orderID, nil
}

func (s *Service) persistenceFailure(state *sagaState, detail string) *Error {
	return &Error{
		Category:       CategoryOrderPersistence,
		Message:        "Order creation failed",
		Detail:         detail,
		PaymentID:      state.payment.PaymentID,
		ReservationIDs: state.reservationIDs,
	}
}

// confirmReservations finalizes every ticket, best-effort: an individual
// confirm failure is logged and does not roll back the order.
func (s *Service) confirmReservations(ctx context.Context, state *sagaState) {
	for _, id := range state.reservationIDs {
		span := s.metrics.Start("confirm_reservation")
		err := s.clients.Inventory.Confirm(ctx, id)
		span.End(err)
		if err != nil {
			s.logf("confirm reservation %s: %v", id, err)
		}
	}
}

func (s *Service) finishConfirmed(ctx context.Context, state *sagaState, req OrderRequest, c *Confirmation) {
	s.emit(ctx, events.Event{
		Type:        "order",
		SagaID:      state.sagaID,
		OrderID:     c.OrderID,
		CustomerID:  req.CustomerID,
		Status:      "confirmed",
		TotalAmount: c.TotalAmount,
		Timestamp:   s.now().UTC(),
	})
	s.record(ctx, AuditRecord{
		SagaID:         state.sagaID,
		CustomerID:     req.CustomerID,
		UserID:         state.userID,
		Status:         "confirmed",
		TotalAmount:    c.TotalAmount,
		OrderID:        c.OrderID,
		PaymentID:      c.PaymentID,
		ReservationIDs: c.ReservationIDs,
	})
}

func (s *Service) finishAborted(ctx context.Context, state *sagaState, req OrderRequest, sagaErr *Error) {
	s.emit(ctx, events.Event{
		Type:       "order",
		SagaID:     state.sagaID,
		CustomerID: req.CustomerID,
		Status:     "aborted",
		Category:   string(sagaErr.Category),
		Timestamp:  s.now().UTC(),
	})
	s.record(ctx, AuditRecord{
		SagaID:         state.sagaID,
		CustomerID:     req.CustomerID,
		UserID:         state.userID,
		Status:         "aborted",
		Category:       string(sagaErr.Category),
		TotalAmount:    state.total,
		PaymentID:      sagaErr.PaymentID,
		ReservationIDs: sagaErr.ReservationIDs,
		Detail:         sagaErr.Detail,
	})
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logf("publish order event for saga %s: %v", ev.SagaID, err)
	}
}

func (s *Service) record(ctx context.Context, rec AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logf("audit saga %s: %v", rec.SagaID, err)
	}
}

func validateRequest(req OrderRequest) *Error {
	if req.Token == "" || req.CustomerID == "" || len(req.Items) == 0 || req.PaymentMethod == "" {
		return failed(CategoryValidation,
			"token, customer_id, products, and payment_method are required", "")
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return failed(CategoryValidation,
				"each product must have a product_id and a positive quantity", "")
		}
	}
	return nil
}
