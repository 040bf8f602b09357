package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/orders"
)

const customerTimeout = 5 * time.Second

// Customers calls the customer registry.
type Customers struct {
	caller
}

// NewCustomers constructs a customer registry client.
func NewCustomers(base string, cfg Config) *Customers {
	return &Customers{newCaller(base, "customer service", customerTimeout, cfg)}
}

// Validate checks that a customer exists and returns its snapshot.
func (c *Customers) Validate(ctx context.Context, customerID string) (orders.Customer, error) {
	var resp struct {
		Valid      bool   `json:"valid"`
		CustomerID string `json:"customer_id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
	}
	err := c.do(ctx, http.MethodGet, "/customers/"+customerID+"/validate", nil, &resp, http.StatusOK)
	if err != nil {
		return orders.Customer{}, err
	}
	if !resp.Valid {
		return orders.Customer{}, errors.New("Customer validation failed")
	}
	return orders.Customer{
		CustomerID: resp.CustomerID,
		Name:       resp.Name,
		Email:      resp.Email,
	}, nil
}
