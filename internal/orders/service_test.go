package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/events"
)

// recordingInventory wraps an InventoryClient and records every operation
// in call order.
type recordingInventory struct {
	InventoryClient
	mu    sync.Mutex
	calls []string

	reserveErrAfter int
	reserveCalls    int
}

func (r *recordingInventory) log(op, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op+" "+id)
}

func (r *recordingInventory) GetProduct(ctx context.Context, productID string) (Product, error) {
	r.log("get", productID)
	return r.InventoryClient.GetProduct(ctx, productID)
}

func (r *recordingInventory) CheckAvailability(ctx context.Context, productID string, quantity int) (Availability, error) {
	r.log("check", productID)
	return r.InventoryClient.CheckAvailability(ctx, productID, quantity)
}

func (r *recordingInventory) Reserve(ctx context.Context, productID string, quantity int, customerID string) (string, error) {
	r.log("reserve", productID)
	r.reserveCalls++
	if r.reserveErrAfter > 0 && r.reserveCalls > r.reserveErrAfter {
		return "", errors.New("reservation store unavailable")
	}
	return r.InventoryClient.Reserve(ctx, productID, quantity, customerID)
}

func (r *recordingInventory) Confirm(ctx context.Context, reservationID string) error {
	r.log("confirm", reservationID)
	return r.InventoryClient.Confirm(ctx, reservationID)
}

func (r *recordingInventory) Cancel(ctx context.Context, reservationID string) error {
	r.log("cancel", reservationID)
	return r.InventoryClient.Cancel(ctx, reservationID)
}

func (r *recordingInventory) ops(op string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, call := range r.calls {
		if len(call) > len(op) && call[:len(op)] == op && call[len(op)] == ' ' {
			out = append(out, call[len(op)+1:])
		}
	}
	return out
}

type failingPayment struct {
	calls int
}

func (f *failingPayment) Process(ctx context.Context, customerID string, amount float64, method string) (Payment, error) {
	f.calls++
	return Payment{}, errors.New("Payment processing failed")
}

type failingOrders struct {
	calls int
}

func (f *failingOrders) Create(ctx context.Context, snapshot OrderSnapshot) (string, error) {
	f.calls++
	return "", errors.New("orders collection unavailable")
}

type countingOrders struct {
	inner *MemoryOrderClient
	calls int
}

func (c *countingOrders) Create(ctx context.Context, snapshot OrderSnapshot) (string, error) {
	c.calls++
	return c.inner.Create(ctx, snapshot)
}

func newTestFixture() (Collaborators, *MemoryAuthClient, *MemoryCustomerClient, *recordingInventory, *MemoryPaymentClient, *MemoryOrderClient) {
	auth := NewMemoryAuthClient()
	auth.AddToken("t1", Identity{UserID: "u1", Username: "user-one"})

	customers := NewMemoryCustomerClient()
	customers.AddCustomer(Customer{CustomerID: "c1", Name: "Ada", Email: "ada@example.com"})

	base := NewMemoryInventoryClient()
	inventory := &recordingInventory{InventoryClient: base}

	payments := NewMemoryPaymentClient()
	ledger := NewMemoryOrderClient()

	clients := Collaborators{
		Auth:      auth,
		Customers: customers,
		Inventory: inventory,
		Payments:  payments,
		Orders:    ledger,
	}
	return clients, auth, customers, inventory, payments, ledger
}

func memoryInventory(inv *recordingInventory) *MemoryInventoryClient {
	return inv.InventoryClient.(*MemoryInventoryClient)
}

func TestCreateOrder_Success(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, payments, ledger := newTestFixture()
	memoryInventory(inventory).AddProduct("p1", "widget", 10.00, 5)

	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	svc := NewService(ServiceConfig{
		Clients: clients,
		Now:     func() time.Time { return created },
	})

	confirmation, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "t1",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "visa",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if confirmation.TotalAmount != 20.00 {
		t.Fatalf("expected total 20.00, got %v", confirmation.TotalAmount)
	}
	if confirmation.Status != "confirmed" {
		t.Fatalf("expected status confirmed, got %q", confirmation.Status)
	}
	if confirmation.CustomerName != "Ada" {
		t.Fatalf("expected customer name Ada, got %q", confirmation.CustomerName)
	}
	if !confirmation.CreatedAt.Equal(created) {
		t.Fatalf("expected created at %v, got %v", created, confirmation.CreatedAt)
	}
	if len(confirmation.ReservationIDs) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(confirmation.ReservationIDs))
	}

	status, ok := memoryInventory(inventory).ReservationStatus(confirmation.ReservationIDs[0])
	if !ok || status != ReservationConfirmed {
		t.Fatalf("expected reservation confirmed, got %q (found=%v)", status, ok)
	}
	if !payments.WasCharged(confirmation.PaymentID) {
		t.Fatalf("expected payment %s to be recorded", confirmation.PaymentID)
	}
	snap, ok := ledger.Order(confirmation.OrderID)
	if !ok {
		t.Fatalf("expected order %s to be persisted", confirmation.OrderID)
	}
	if snap.TotalAmount != 20.00 || snap.Status != "confirmed" {
		t.Fatalf("unexpected persisted snapshot: %+v", snap)
	}
}

func TestCreateOrder_ValidationFailureMakesNoCalls(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:      "t1",
		CustomerID: "c1",
		// missing items and payment method
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(inventory.calls) != 0 {
		t.Fatalf("expected no inventory calls, got %v", inventory.calls)
	}
}

func TestCreateOrder_AuthenticationFailure(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "unknown",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if len(inventory.calls) != 0 {
		t.Fatalf("expected no inventory calls, got %v", inventory.calls)
	}
}

func TestCreateOrder_InsufficientStockLeavesNothingReserved(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	memoryInventory(inventory).AddProduct("p1", "widget", 10.00, 1)

	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "t1",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryAvailability {
		t.Fatalf("expected availability error, got %v", err)
	}
	if got := inventory.ops("reserve"); len(got) != 0 {
		t.Fatalf("expected no reserve calls, got %v", got)
	}
	if available, _ := memoryInventory(inventory).AvailableQuantity("p1"); available != 1 {
		t.Fatalf("expected stock untouched, got %d", available)
	}
}

func TestCreateOrder_MidListFailureCancelsEarlierAndSkipsLater(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	inv := memoryInventory(inventory)
	inv.AddProduct("p1", "widget", 10.00, 5)
	inv.AddProduct("p2", "gadget", 4.00, 1) // second item wants more than stock
	inv.AddProduct("p3", "gizmo", 2.50, 9)

	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:      "t1",
		CustomerID: "c1",
		Items: []LineItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
			{ProductID: "p3", Quantity: 1},
		},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryAvailability {
		t.Fatalf("expected availability error, got %v", err)
	}

	reserved := inventory.ops("reserve")
	if len(reserved) != 1 || reserved[0] != "p1" {
		t.Fatalf("expected exactly one reserve call for p1, got %v", reserved)
	}
	cancelled := inventory.ops("cancel")
	if len(cancelled) != 1 {
		t.Fatalf("expected one cancel call, got %v", cancelled)
	}
	status, _ := inv.ReservationStatus(cancelled[0])
	if status != ReservationCancelled {
		t.Fatalf("expected first reservation cancelled, got %q", status)
	}
	if got := inventory.ops("get"); contains(got, "p3") {
		t.Fatalf("expected no calls for items after the failure, got %v", got)
	}
	if available, _ := inv.AvailableQuantity("p1"); available != 5 {
		t.Fatalf("expected p1 stock restored to 5, got %d", available)
	}
}

func TestCreateOrder_SecondReservationFailureCancelsFirst(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	inv := memoryInventory(inventory)
	inv.AddProduct("p1", "widget", 10.00, 5)
	inv.AddProduct("p2", "gadget", 4.00, 5)
	inventory.reserveErrAfter = 1

	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:      "t1",
		CustomerID: "c1",
		Items: []LineItem{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 1},
		},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryReservation {
		t.Fatalf("expected reservation error, got %v", err)
	}

	cancelled := inventory.ops("cancel")
	if len(cancelled) != 1 {
		t.Fatalf("expected one cancel call, got %v", cancelled)
	}
	status, _ := inv.ReservationStatus(cancelled[0])
	if status != ReservationCancelled {
		t.Fatalf("expected first reservation terminal status cancelled, got %q", status)
	}
}

func TestCreateOrder_PaymentFailureCancelsAllReservationsAndSkipsLedger(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	inv := memoryInventory(inventory)
	inv.AddProduct("p1", "widget", 10.00, 5)
	inv.AddProduct("p2", "gadget", 4.00, 5)

	payment := &failingPayment{}
	clients.Payments = payment
	ledger := &countingOrders{inner: NewMemoryOrderClient()}
	clients.Orders = ledger

	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:      "t1",
		CustomerID: "c1",
		Items: []LineItem{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 2},
		},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryPayment {
		t.Fatalf("expected payment error, got %v", err)
	}
	if payment.calls != 1 {
		t.Fatalf("expected one payment attempt, got %d", payment.calls)
	}
	if ledger.calls != 0 {
		t.Fatalf("expected order ledger never called, got %d", ledger.calls)
	}

	cancelled := inventory.ops("cancel")
	if len(cancelled) != 2 {
		t.Fatalf("expected both reservations cancelled, got %v", cancelled)
	}
	for _, id := range cancelled {
		status, _ := inv.ReservationStatus(id)
		if status != ReservationCancelled {
			t.Fatalf("expected reservation %s cancelled, got %q", id, status)
		}
	}
}

func TestCreateOrder_PersistenceFailureLeavesPaymentAndReservations(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, payments, _ := newTestFixture()
	inv := memoryInventory(inventory)
	inv.AddProduct("p1", "widget", 10.00, 5)

	ledger := &failingOrders{}
	clients.Orders = ledger

	svc := NewService(ServiceConfig{Clients: clients})

	_, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "t1",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "visa",
	})

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Category != CategoryOrderPersistence {
		t.Fatalf("expected order persistence error, got %v", err)
	}
	if sagaErr.PaymentID == "" {
		t.Fatalf("expected orphaned payment id in error")
	}
	if len(sagaErr.ReservationIDs) != 1 {
		t.Fatalf("expected orphaned reservation ids, got %v", sagaErr.ReservationIDs)
	}
	if !payments.WasCharged(sagaErr.PaymentID) {
		t.Fatalf("expected the charge to remain")
	}

	if got := inventory.ops("cancel"); len(got) != 0 {
		t.Fatalf("expected no cancel calls after payment, got %v", got)
	}
	if got := inventory.ops("confirm"); len(got) != 0 {
		t.Fatalf("expected no confirm calls, got %v", got)
	}
	status, _ := inv.ReservationStatus(sagaErr.ReservationIDs[0])
	if status != ReservationReserved {
		t.Fatalf("expected reservation left in reserved status, got %q", status)
	}
}

func TestReservationTransitionsAtMostOnce(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	inv := memoryInventory(inventory)
	inv.AddProduct("p1", "widget", 10.00, 5)

	svc := NewService(ServiceConfig{Clients: clients})

	confirmation, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "t1",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: "visa",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A confirmed ticket must reject further transitions, never silently
	// change state.
	id := confirmation.ReservationIDs[0]
	if err := inv.Confirm(context.Background(), id); err == nil {
		t.Fatalf("expected repeat confirm to be rejected")
	}
	if err := inv.Cancel(context.Background(), id); err == nil {
		t.Fatalf("expected cancel of confirmed reservation to be rejected")
	}
	status, _ := inv.ReservationStatus(id)
	if status != ReservationConfirmed {
		t.Fatalf("expected status to stay confirmed, got %q", status)
	}
}

func TestCreateOrder_EmitsTerminalEventAndAuditRecord(t *testing.T) {
	t.Parallel()

	clients, _, _, inventory, _, _ := newTestFixture()
	memoryInventory(inventory).AddProduct("p1", "widget", 10.00, 5)

	sink := &captureSink{}
	audit := &captureAudit{}
	svc := NewService(ServiceConfig{
		Clients:   clients,
		Events:    sink,
		Audit:     audit,
		NewSagaID: func() string { return "saga-test" },
	})

	confirmation, err := svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "t1",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: "visa",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected one terminal event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.SagaID != "saga-test" || ev.Status != "confirmed" || ev.OrderID != confirmation.OrderID {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	rec := audit.records[0]
	if rec.SagaID != "saga-test" || rec.Status != "confirmed" || rec.UserID != "u1" {
		t.Fatalf("unexpected audit record: %+v", rec)
	}

	// Aborted sagas must be recorded too.
	_, err = svc.CreateOrder(context.Background(), OrderRequest{
		Token:         "bad-token",
		CustomerID:    "c1",
		Items:         []LineItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: "visa",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(sink.events) != 2 || sink.events[1].Status != "aborted" {
		t.Fatalf("expected aborted event, got %+v", sink.events)
	}
	if len(audit.records) != 2 || audit.records[1].Category != string(CategoryAuthentication) {
		t.Fatalf("expected aborted audit record, got %+v", audit.records)
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureSink) Publish(ctx context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

type captureAudit struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (c *captureAudit) Record(ctx context.Context, rec AuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
