package orders

import "context"

// Identity is a verified credential token.
type Identity struct {
	UserID   string
	Username string
}

// Customer is the registry's snapshot of a customer.
type Customer struct {
	CustomerID string
	Name       string
	Email      string
}

// Product is the inventory's view of a product at fetch time.
type Product struct {
	ProductID string
	Name      string
	Price     float64
}

// Availability reports whether a requested quantity can be reserved.
type Availability struct {
	Available         bool
	AvailableQuantity int
	RequestedQuantity int
}

// Payment is the reference produced by a successful charge. The protocol
// exposes no refund operation, so the orchestrator can never reverse it.
type Payment struct {
	PaymentID     string
	TransactionID string
}

// AuthClient verifies credential tokens against the identity service.
type AuthClient interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// CustomerClient validates customer ids against the customer registry.
type CustomerClient interface {
	Validate(ctx context.Context, customerID string) (Customer, error)
}

// InventoryClient exposes the inventory service's product and reservation
// operations. Reserve returns the reservation id; Confirm and Cancel drive
// a reservation's single allowed transition out of reserved status.
type InventoryClient interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	CheckAvailability(ctx context.Context, productID string, quantity int) (Availability, error)
	Reserve(ctx context.Context, productID string, quantity int, customerID string) (string, error)
	Confirm(ctx context.Context, reservationID string) error
	Cancel(ctx context.Context, reservationID string) error
}

// PaymentClient charges a payment method for an amount.
type PaymentClient interface {
	Process(ctx context.Context, customerID string, amount float64, method string) (Payment, error)
}

// OrderClient persists the order record in the order ledger.
type OrderClient interface {
	Create(ctx context.Context, snapshot OrderSnapshot) (string, error)
}

// Collaborators groups the five downstream client handles the orchestrator
// drives. Tests substitute fakes per collaborator.
type Collaborators struct {
	Auth      AuthClient
	Customers CustomerClient
	Inventory InventoryClient
	Payments  PaymentClient
	Orders    OrderClient
}
