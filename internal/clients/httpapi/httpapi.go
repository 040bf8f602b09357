// Package httpapi implements the collaborator client interfaces over the
// services' JSON HTTP APIs. Every adapter folds non-2xx responses and
// transport failures into one error shape: the collaborator's own error
// text when the body carries one, a source-tagged transport description
// otherwise. Nothing in this package panics or retries.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/orders"
)

// Config carries optional adapter settings. A nil HTTPClient gets a
// per-service default with the service's timeout; a nil Breaker disables
// circuit breaking.
type Config struct {
	HTTPClient *http.Client
	Breaker    *orders.CircuitBreaker
}

type caller struct {
	base    string
	service string
	client  *http.Client
	breaker *orders.CircuitBreaker
}

func newCaller(base, service string, timeout time.Duration, cfg Config) caller {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return caller{
		base:    strings.TrimRight(base, "/"),
		service: service,
		client:  client,
		breaker: cfg.Breaker,
	}
}

// do issues one request and decodes the response into out when the status
// matches okStatus. The breaker, when configured, wraps the whole call.
func (c caller) do(ctx context.Context, method, path string, payload any, out any, okStatus int) error {
	call := func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("%s error: %v", c.service, err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
		if err != nil {
			return fmt.Errorf("%s error: %v", c.service, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s error: %v", c.service, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s error: %v", c.service, err)
		}

		if resp.StatusCode != okStatus {
			return fmt.Errorf("%s", errorDetail(respBody, fmt.Sprintf("%s returned status %d", c.service, resp.StatusCode)))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("%s error: malformed response: %v", c.service, err)
			}
		}
		return nil
	}

	return c.breaker.Execute(call)
}

// errorDetail extracts the collaborator's error field from a failure body.
func errorDetail(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}
