package httpapi

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/orders"
)

const orderTimeout = 5 * time.Second

// Orders calls the order ledger.
type Orders struct {
	caller
}

// NewOrders constructs an order ledger client.
func NewOrders(base string, cfg Config) *Orders {
	return &Orders{newCaller(base, "order service", orderTimeout, cfg)}
}

type orderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Create persists the order snapshot and returns the new order id.
func (o *Orders) Create(ctx context.Context, snapshot orders.OrderSnapshot) (string, error) {
	lines := make([]orderLine, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, orderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	payload := map[string]any{
		"customer_id":     snapshot.CustomerID,
		"products":        lines,
		"total_amount":    snapshot.TotalAmount,
		"payment_id":      snapshot.PaymentID,
		"reservation_ids": snapshot.ReservationIDs,
		"status":          snapshot.Status,
	}
	if snapshot.ShippingAddress != "" {
		payload["shipping_address"] = snapshot.ShippingAddress
	}
	if snapshot.BillingAddress != "" {
		payload["billing_address"] = snapshot.BillingAddress
	}

	var resp struct {
		OrderID string `json:"order_id"`
	}
	err := o.do(ctx, http.MethodPost, "/orders", payload, &resp, http.StatusCreated)
	if err != nil {
		return "", err
	}
	return resp.OrderID, nil
}
