package repository

import (
	"context"
	"fmt"

	"github.com/skylark-travel/flightpay/internal/models"
)

// InsertGatewayEventIfAbsent records the first sighting of an event id.
// A concurrent insert of the same id is swallowed by ON CONFLICT; the return
// value reports whether this call created the row.
func (q *Queries) InsertGatewayEventIfAbsent(ctx context.Context, id, eventType string, payload []byte) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO gateway_events (id, event_type, payload, processed, retry_count, received_at)
		VALUES ($1, $2, $3, FALSE, 0, NOW())
		ON CONFLICT (id) DO NOTHING
	`, id, eventType, payload)
	if err != nil {
		return false, fmt.Errorf("insert gateway event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetGatewayEvent loads a single event row by external id.
func (q *Queries) GetGatewayEvent(ctx context.Context, id string) (models.GatewayEvent, error) {
	var ev models.GatewayEvent
	err := q.db.QueryRow(ctx, `
		SELECT id, event_type, payload, processed, processed_at, retry_count, last_error, received_at
		FROM gateway_events
		WHERE id = $1
	`, id).Scan(&ev.ID, &ev.EventType, &ev.Payload, &ev.Processed, &ev.ProcessedAt, &ev.RetryCount, &ev.LastError, &ev.ReceivedAt)
	if err != nil {
		return ev, fmt.Errorf("get gateway event: %w", err)
	}
	return ev, nil
}

// MarkGatewayEventProcessed flips the terminal processed marker. The
// processed=FALSE guard keeps the marker one-way.
func (q *Queries) MarkGatewayEventProcessed(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE gateway_events
		SET processed = TRUE, processed_at = NOW(), last_error = NULL
		WHERE id = $1 AND processed = FALSE
	`, id)
	if err != nil {
		return 0, fmt.Errorf("mark gateway event processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordGatewayEventFailure increments the retry counter and stores the error
// without touching the processed marker.
func (q *Queries) RecordGatewayEventFailure(ctx context.Context, id, lastError string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE gateway_events
		SET retry_count = retry_count + 1, last_error = $2
		WHERE id = $1 AND processed = FALSE
	`, id, lastError)
	if err != nil {
		return 0, fmt.Errorf("record gateway event failure: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListUnprocessedGatewayEvents returns pending events, oldest first.
func (q *Queries) ListUnprocessedGatewayEvents(ctx context.Context, limit int32) ([]models.GatewayEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, event_type, payload, processed, processed_at, retry_count, last_error, received_at
		FROM gateway_events
		WHERE processed = FALSE
		ORDER BY received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed gateway events: %w", err)
	}
	defer rows.Close()

	var events []models.GatewayEvent
	for rows.Next() {
		var ev models.GatewayEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Payload, &ev.Processed, &ev.ProcessedAt, &ev.RetryCount, &ev.LastError, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan gateway event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
