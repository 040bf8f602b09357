package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/orders"
)

// The payment gateway is slower than the lookups; it gets the long bound.
const paymentTimeout = 10 * time.Second

// Payments calls the payment service.
type Payments struct {
	caller
}

// NewPayments constructs a payment service client.
func NewPayments(base string, cfg Config) *Payments {
	return &Payments{newCaller(base, "payment service", paymentTimeout, cfg)}
}

// Process charges the amount against the payment method. There is no
// reverse operation; a payment, once processed, stays processed.
func (p *Payments) Process(ctx context.Context, customerID string, amount float64, method string) (orders.Payment, error) {
	payload := map[string]any{
		"customer_id":    customerID,
		"amount":         amount,
		"payment_method": method,
		"currency":       "USD",
	}
	var resp struct {
		Success       bool   `json:"success"`
		PaymentID     string `json:"payment_id"`
		TransactionID string `json:"transaction_id"`
	}
	err := p.do(ctx, http.MethodPost, "/payments/process", payload, &resp, http.StatusOK)
	if err != nil {
		return orders.Payment{}, err
	}
	if !resp.Success {
		return orders.Payment{}, errors.New("Payment processing failed")
	}
	return orders.Payment{PaymentID: resp.PaymentID, TransactionID: resp.TransactionID}, nil
}
