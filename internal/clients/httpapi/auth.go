package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/orders"
)

const authTimeout = 5 * time.Second

// Auth calls the identity service.
type Auth struct {
	caller
}

// NewAuth constructs an identity service client.
func NewAuth(base string, cfg Config) *Auth {
	return &Auth{newCaller(base, "auth service", authTimeout, cfg)}
}

// Verify checks a credential token and returns the identity behind it.
func (a *Auth) Verify(ctx context.Context, token string) (orders.Identity, error) {
	var resp struct {
		Valid    bool   `json:"valid"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	err := a.do(ctx, http.MethodPost, "/verify", map[string]string{"token": token}, &resp, http.StatusOK)
	if err != nil {
		return orders.Identity{}, err
	}
	return orders.Identity{UserID: resp.UserID, Username: resp.Username}, nil
}

// Login forwards a raw login payload and returns the service's status code
// and body unchanged, for the gateway's pass-through endpoint.
func (a *Auth) Login(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/login", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("%s error: %v", a.service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s error: %v", a.service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s error: %v", a.service, err)
	}
	return resp.StatusCode, body, nil
}
