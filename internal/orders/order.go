package orders

import "time"

// LineItem is one requested product/quantity pair.
type LineItem struct {
	ProductID string
	Quantity  int
}

// OrderRequest is the immutable input to one saga. Token, CustomerID,
// Items, and PaymentMethod are mandatory; the addresses are optional.
type OrderRequest struct {
	Token           string
	CustomerID      string
	Items           []LineItem
	PaymentMethod   string
	ShippingAddress string
	BillingAddress  string
}

// OrderLine is a line item with its price as resolved by the inventory
// service.
type OrderLine struct {
	ProductID string
	Quantity  int
	Price     float64
}

// OrderSnapshot is the payload persisted by the order ledger for a
// successful saga.
type OrderSnapshot struct {
	CustomerID      string
	Lines           []OrderLine
	TotalAmount     float64
	PaymentID       string
	ReservationIDs  []string
	Status          string
	ShippingAddress string
	BillingAddress  string
}

// Confirmation is returned to the caller when the saga completes.
type Confirmation struct {
	OrderID        string
	CustomerID     string
	CustomerName   string
	Lines          []OrderLine
	TotalAmount    float64
	PaymentID      string
	TransactionID  string
	ReservationIDs []string
	Status         string
	CreatedAt      time.Time
}
