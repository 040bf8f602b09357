package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"

	auditdb "storefront/internal/db/audit"
	"storefront/internal/orders"
)

var openAuditDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildAuditStore opens the outcomes database when DATABASE_URL is
// set. A nil recorder disables the audit trail.
func buildAuditStore(ctx context.Context) (orders.AuditRecorder, func(), error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, func() {}, nil
	}

	db, err := openAuditDB("pgx", databaseURL)
	if err != nil {
		return nil, nil, err
	}

	store, err := auditdb.NewStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("close audit db: %v", err)
		}
	}
	return store, cleanup, nil
}
