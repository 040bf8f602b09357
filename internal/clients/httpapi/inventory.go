package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/orders"
)

const inventoryTimeout = 5 * time.Second

// Inventory calls the inventory service's product and reservation
// endpoints.
type Inventory struct {
	caller
}

// NewInventory constructs an inventory service client.
func NewInventory(base string, cfg Config) *Inventory {
	return &Inventory{newCaller(base, "inventory service", inventoryTimeout, cfg)}
}

// GetProduct fetches a product's current name and price.
func (i *Inventory) GetProduct(ctx context.Context, productID string) (orders.Product, error) {
	var resp struct {
		ID    string  `json:"_id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	err := i.do(ctx, http.MethodGet, "/products/"+productID, nil, &resp, http.StatusOK)
	if err != nil {
		return orders.Product{}, err
	}
	return orders.Product{ProductID: resp.ID, Name: resp.Name, Price: resp.Price}, nil
}

// CheckAvailability reports whether the requested quantity can be
// reserved right now.
func (i *Inventory) CheckAvailability(ctx context.Context, productID string, quantity int) (orders.Availability, error) {
	var resp struct {
		Available         bool `json:"available"`
		AvailableQuantity int  `json:"available_quantity"`
		RequestedQuantity int  `json:"requested_quantity"`
	}
	path := "/products/" + productID + "/availability?quantity=" + strconv.Itoa(quantity)
	err := i.do(ctx, http.MethodGet, path, nil, &resp, http.StatusOK)
	if err != nil {
		return orders.Availability{}, err
	}
	return orders.Availability{
		Available:         resp.Available,
		AvailableQuantity: resp.AvailableQuantity,
		RequestedQuantity: resp.RequestedQuantity,
	}, nil
}

// Reserve places a hold on stock and returns the reservation id.
func (i *Inventory) Reserve(ctx context.Context, productID string, quantity int, customerID string) (string, error) {
	payload := map[string]any{
		"quantity":    quantity,
		"customer_id": customerID,
	}
	var resp struct {
		Reserved      bool   `json:"reserved"`
		ReservationID string `json:"reservation_id"`
	}
	err := i.do(ctx, http.MethodPost, "/products/"+productID+"/reserve", payload, &resp, http.StatusOK)
	if err != nil {
		return "", err
	}
	if !resp.Reserved {
		return "", errors.New("Stock reservation failed")
	}
	return resp.ReservationID, nil
}

// Confirm finalizes a reservation, deducting the held stock for good.
func (i *Inventory) Confirm(ctx context.Context, reservationID string) error {
	var resp struct {
		Confirmed bool `json:"confirmed"`
	}
	err := i.do(ctx, http.MethodPost, "/reservations/"+reservationID+"/confirm", nil, &resp, http.StatusOK)
	if err != nil {
		return err
	}
	if !resp.Confirmed {
		return errors.New("Reservation confirmation failed")
	}
	return nil
}

// Cancel releases a reservation back to available stock.
func (i *Inventory) Cancel(ctx context.Context, reservationID string) error {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	err := i.do(ctx, http.MethodPost, "/reservations/"+reservationID+"/cancel", nil, &resp, http.StatusOK)
	if err != nil {
		return err
	}
	if !resp.Cancelled {
		return errors.New("Reservation cancellation failed")
	}
	return nil
}
