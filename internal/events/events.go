package events

import (
	"context"
	"errors"
	"time"
)

// Event is one terminal order saga outcome.
type Event struct {
	Type        string    `json:"type"`
	SagaID      string    `json:"saga_id"`
	OrderID     string    `json:"order_id,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`
	Status      string    `json:"status"`
	Category    string    `json:"category,omitempty"`
	TotalAmount float64   `json:"total_amount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes order events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiPublisher forwards each event to every publisher, collecting errors
// so all of them get a chance to write.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher constructs a Publisher that publishes to each target in
// sequence.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish forwards the event to each publisher.
func (m *MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
