// Package auditdb persists finished-saga outcomes to Postgres.
//
// One row per saga, confirmed or aborted. The table is an operational
// trail for support tooling, not a recovery log: nothing reads it back
// to resume work, and a failed insert never fails the order.
package auditdb

import (
	"context"
	"database/sql"
	"strings"

	"storefront/internal/orders"
)

// Store writes saga outcome rows.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store backed by Postgres.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the outcomes table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS saga_outcomes (
			saga_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			user_id TEXT,
			status TEXT NOT NULL,
			category TEXT,
			total_amount DOUBLE PRECISION NOT NULL,
			order_id TEXT,
			payment_id TEXT,
			reservation_ids TEXT,
			detail TEXT,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Record inserts one outcome row. Replays of the same saga id are
// dropped so a retried write cannot duplicate the trail.
func (s *Store) Record(ctx context.Context, rec orders.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saga_outcomes (
			saga_id, customer_id, user_id, status, category,
			total_amount, order_id, payment_id, reservation_ids, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (saga_id) DO NOTHING`,
		rec.SagaID, rec.CustomerID, rec.UserID, rec.Status, rec.Category,
		rec.TotalAmount, rec.OrderID, rec.PaymentID,
		strings.Join(rec.ReservationIDs, ","), rec.Detail,
	)
	return err
}
