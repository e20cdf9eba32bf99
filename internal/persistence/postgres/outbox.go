// Package postgres provides pgx-backed persistence for the workload
// reconciliation service.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/workload/internal/domain"
)

// uniqueViolation is the Postgres error code for unique index violations.
const uniqueViolation = "23505"

// mapConflict translates a unique index violation into the domain conflict
// error; the store's verdict is authoritative over any service pre-check.
func mapConflict(err error, detail string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrConflict, detail)
	}
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"workload.plan_changed": {
		Topic:         "workload_plan_events",
		SchemaSubject: "workload_plan_events-value",
	},
	"workload.actual_changed": {
		Topic:         "workload_actual_events",
		SchemaSubject: "workload_actual_events-value",
	},
}

// insertOutbox records an event row inside the mutating transaction so the
// dispatcher can deliver it after commit.
func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey, dedupeKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}
