package main

import (
	"log"

	"storefront/cmd/gateway/config"
	"storefront/internal/clients/httpapi"
	"storefront/internal/gateway"
	"storefront/internal/orders"
)

// buildCollaborators selects between HTTP clients for the real
// downstream services and seeded in-memory fakes for local runs. The
// LoginProxy is nil in memory mode; there is no identity service to
// forward credentials to.
func buildCollaborators() (orders.Collaborators, gateway.LoginProxy, error) {
	cfg, enabled, err := config.LoadCollaborators()
	if err != nil {
		return orders.Collaborators{}, nil, err
	}

	if !enabled {
		log.Println("no collaborator URLs configured; using in-memory collaborators")
		return memoryCollaborators(), nil, nil
	}

	breaker, err := buildBreaker()
	if err != nil {
		return orders.Collaborators{}, nil, err
	}
	clientCfg := httpapi.Config{Breaker: breaker}

	auth := httpapi.NewAuth(cfg.AuthURL, clientCfg)
	return orders.Collaborators{
		Auth:      auth,
		Customers: httpapi.NewCustomers(cfg.CustomerURL, clientCfg),
		Inventory: httpapi.NewInventory(cfg.InventoryURL, clientCfg),
		Payments:  httpapi.NewPayments(cfg.PaymentURL, clientCfg),
		Orders:    httpapi.NewOrders(cfg.OrderURL, clientCfg),
	}, auth, nil
}

func buildBreaker() (*orders.CircuitBreaker, error) {
	cfg, enabled, err := config.LoadBreaker()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}
	return orders.NewCircuitBreaker(orders.CircuitBreakerConfig{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
	}), nil
}

// memoryCollaborators seeds a small catalog so the binary answers
// orders out of the box: token demo-token for customer cust-1.
func memoryCollaborators() orders.Collaborators {
	auth := orders.NewMemoryAuthClient()
	auth.AddToken("demo-token", orders.Identity{UserID: "user-1", Username: "demo"})

	customers := orders.NewMemoryCustomerClient()
	customers.AddCustomer(orders.Customer{
		CustomerID: "cust-1",
		Name:       "Demo Customer",
		Email:      "demo@example.com",
	})

	inventory := orders.NewMemoryInventoryClient()
	inventory.AddProduct("prod-1", "Widget", 19.99, 100)
	inventory.AddProduct("prod-2", "Gadget", 49.99, 25)

	return orders.Collaborators{
		Auth:      auth,
		Customers: customers,
		Inventory: inventory,
		Payments:  orders.NewMemoryPaymentClient(),
		Orders:    orders.NewMemoryOrderClient(),
	}
}
