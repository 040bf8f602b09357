package orders

import "fmt"

// Category identifies which pipeline step rejected the order.
type Category string

const (
	CategoryValidation       Category = "validation"
	CategoryAuthentication   Category = "authentication"
	CategoryCustomerInvalid  Category = "customer_invalid"
	CategoryProductNotFound  Category = "product_not_found"
	CategoryAvailability     Category = "availability"
	CategoryReservation      Category = "reservation"
	CategoryPayment          Category = "payment"
	CategoryOrderPersistence Category = "order_persistence"
)

// Error is a categorized saga failure. Message is the caller-facing
// headline; Detail carries the failing collaborator's own error text.
// PaymentID and ReservationIDs are set only for order-persistence
// failures, where the charge and the reservations are left standing and an
// operator must reconcile them by hand.
type Error struct {
	Category       Category
	Message        string
	Detail         string
	PaymentID      string
	ReservationIDs []string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

func failed(cat Category, message, detail string) *Error {
	return &Error{Category: cat, Message: message, Detail: detail}
}

func failedf(cat Category, detail, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...), Detail: detail}
}
