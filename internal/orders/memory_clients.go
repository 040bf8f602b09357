package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ReservationStatus values mirror the inventory service's ticket states.
const (
	ReservationReserved  = "reserved"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

// NewMemoryAuthClient constructs an in-memory identity verifier.
func NewMemoryAuthClient() *MemoryAuthClient {
	return &MemoryAuthClient{tokens: make(map[string]Identity)}
}

// MemoryAuthClient verifies tokens against a seeded map.
type MemoryAuthClient struct {
	mu     sync.Mutex
	tokens map[string]Identity
}

// AddToken registers a token as valid for the given identity.
func (c *MemoryAuthClient) AddToken(token string, id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token] = id
}

func (c *MemoryAuthClient) Verify(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.tokens[token]
	if !ok {
		return Identity{}, errors.New("Invalid token")
	}
	return id, nil
}

// NewMemoryCustomerClient constructs an in-memory customer registry.
func NewMemoryCustomerClient() *MemoryCustomerClient {
	return &MemoryCustomerClient{customers: make(map[string]Customer)}
}

// MemoryCustomerClient validates customers against a seeded map.
type MemoryCustomerClient struct {
	mu        sync.Mutex
	customers map[string]Customer
}

// AddCustomer registers a customer.
func (c *MemoryCustomerClient) AddCustomer(cust Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers[cust.CustomerID] = cust
}

func (c *MemoryCustomerClient) Validate(ctx context.Context, customerID string) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cust, ok := c.customers[customerID]
	if !ok {
		return Customer{}, errors.New("Customer not found")
	}
	return cust, nil
}

type memoryProduct struct {
	name      string
	price     float64
	stock     int
	reserved  int
	available int
}

type memoryReservation struct {
	productID  string
	customerID string
	quantity   int
	status     string
}

// NewMemoryInventoryClient constructs an in-memory inventory.
func NewMemoryInventoryClient() *MemoryInventoryClient {
	return &MemoryInventoryClient{
		products:     make(map[string]*memoryProduct),
		reservations: make(map[string]*memoryReservation),
	}
}

// MemoryInventoryClient tracks products and reservation tickets in memory.
// Reserve performs check-and-decrement under one lock, and a ticket only
// ever transitions out of reserved status once.
type MemoryInventoryClient struct {
	mu           sync.Mutex
	products     map[string]*memoryProduct
	reservations map[string]*memoryReservation
}

// AddProduct seeds a product with the given price and stock.
func (c *MemoryInventoryClient) AddProduct(productID, name string, price float64, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[productID] = &memoryProduct{
		name:      name,
		price:     price,
		stock:     stock,
		available: stock,
	}
}

func (c *MemoryInventoryClient) GetProduct(ctx context.Context, productID string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return Product{}, errors.New("Product not found")
	}
	return Product{ProductID: productID, Name: p.name, Price: p.price}, nil
}

func (c *MemoryInventoryClient) CheckAvailability(ctx context.Context, productID string, quantity int) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return Availability{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return Availability{}, errors.New("Product not found")
	}
	return Availability{
		Available:         p.available >= quantity,
		AvailableQuantity: p.available,
		RequestedQuantity: quantity,
	}, nil
}

func (c *MemoryInventoryClient) Reserve(ctx context.Context, productID string, quantity int, customerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return "", errors.New("Product not found")
	}
	if p.available < quantity {
		return "", fmt.Errorf("Insufficient stock: available %d, requested %d", p.available, quantity)
	}

	reservationID := uuid.NewString()
	c.reservations[reservationID] = &memoryReservation{
		productID:  productID,
		customerID: customerID,
		quantity:   quantity,
		status:     ReservationReserved,
	}
	p.reserved += quantity
	p.available -= quantity
	return reservationID, nil
}

func (c *MemoryInventoryClient) Confirm(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.reservations[reservationID]
	if !ok {
		return errors.New("Reservation not found")
	}
	if res.status != ReservationReserved {
		return errors.New("Reservation is not in reserved status")
	}
	res.status = ReservationConfirmed
	p := c.products[res.productID]
	p.stock -= res.quantity
	p.reserved -= res.quantity
	return nil
}

func (c *MemoryInventoryClient) Cancel(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.reservations[reservationID]
	if !ok {
		return errors.New("Reservation not found")
	}
	if res.status != ReservationReserved {
		return errors.New("Reservation cannot be cancelled")
	}
	res.status = ReservationCancelled
	p := c.products[res.productID]
	p.reserved -= res.quantity
	p.available += res.quantity
	return nil
}

// ReservationStatus returns a ticket's status (for testing/inspection).
func (c *MemoryInventoryClient) ReservationStatus(reservationID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.reservations[reservationID]
	if !ok {
		return "", false
	}
	return res.status, true
}

// AvailableQuantity returns a product's currently available stock (for
// testing/inspection).
func (c *MemoryInventoryClient) AvailableQuantity(productID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return 0, false
	}
	return p.available, true
}

// NewMemoryPaymentClient constructs an in-memory payment processor.
func NewMemoryPaymentClient() *MemoryPaymentClient {
	return &MemoryPaymentClient{payments: make(map[string]float64)}
}

// MemoryPaymentClient simulates the payment gateway: it declines the
// invalid_card method and amounts above 10000, and records everything else
// as charged.
type MemoryPaymentClient struct {
	mu       sync.Mutex
	payments map[string]float64
}

func (c *MemoryPaymentClient) Process(ctx context.Context, customerID string, amount float64, method string) (Payment, error) {
	if err := ctx.Err(); err != nil {
		return Payment{}, err
	}
	if amount <= 0 {
		return Payment{}, errors.New("Amount must be greater than 0")
	}
	if method == "invalid_card" || amount > 10000 {
		return Payment{}, errors.New("Payment processing failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	paymentID := uuid.NewString()
	c.payments[paymentID] = amount
	return Payment{PaymentID: paymentID, TransactionID: uuid.NewString()}, nil
}

// WasCharged reports whether a payment id exists (for testing/inspection).
func (c *MemoryPaymentClient) WasCharged(paymentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.payments[paymentID]
	return ok
}

// NewMemoryOrderClient constructs an in-memory order ledger.
func NewMemoryOrderClient() *MemoryOrderClient {
	return &MemoryOrderClient{orders: make(map[string]OrderSnapshot)}
}

// MemoryOrderClient stores order snapshots in memory.
type MemoryOrderClient struct {
	mu     sync.Mutex
	orders map[string]OrderSnapshot
}

func (c *MemoryOrderClient) Create(ctx context.Context, snapshot OrderSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	orderID := uuid.NewString()
	c.orders[orderID] = snapshot
	return orderID, nil
}

// Order returns a stored snapshot (for testing/inspection).
func (c *MemoryOrderClient) Order(orderID string) (OrderSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.orders[orderID]
	return snap, ok
}
