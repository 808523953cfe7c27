package repository

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func setupEventsDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gateway_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload BYTEA NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMPTZ,
			retry_count INT NOT NULL DEFAULT 0,
			last_error TEXT,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE gateway_events`)
	require.NoError(t, err)

	return pool
}

func TestInsertGatewayEventIfAbsent(t *testing.T) {
	pool := setupEventsDB(t)
	defer pool.Close()

	q := New(pool)
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","data":{}}`)

	created, err := q.InsertGatewayEventIfAbsent(ctx, "evt_1", "charge.succeeded", payload)
	require.NoError(t, err)
	require.True(t, created)

	// Redelivery of the same id is absorbed.
	created, err = q.InsertGatewayEventIfAbsent(ctx, "evt_1", "charge.succeeded", payload)
	require.NoError(t, err)
	require.False(t, created)

	ev, err := q.GetGatewayEvent(ctx, "evt_1")
	require.NoError(t, err)
	require.Equal(t, "charge.succeeded", ev.EventType)
	require.False(t, ev.Processed)
	require.Equal(t, int32(0), ev.RetryCount)
}

func TestMarkGatewayEventProcessedIsOneWay(t *testing.T) {
	pool := setupEventsDB(t)
	defer pool.Close()

	q := New(pool)
	ctx := context.Background()

	_, err := q.InsertGatewayEventIfAbsent(ctx, "evt_2", "charge.refunded", []byte(`{}`))
	require.NoError(t, err)

	rows, err := q.MarkGatewayEventProcessed(ctx, "evt_2")
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	// The second marker loses the race and must observe zero rows.
	rows, err = q.MarkGatewayEventProcessed(ctx, "evt_2")
	require.NoError(t, err)
	require.Equal(t, int64(0), rows)

	ev, err := q.GetGatewayEvent(ctx, "evt_2")
	require.NoError(t, err)
	require.True(t, ev.Processed)
	require.NotNil(t, ev.ProcessedAt)
}

func TestRecordGatewayEventFailureSkipsProcessed(t *testing.T) {
	pool := setupEventsDB(t)
	defer pool.Close()

	q := New(pool)
	ctx := context.Background()

	_, err := q.InsertGatewayEventIfAbsent(ctx, "evt_3", "charge.failed", []byte(`{}`))
	require.NoError(t, err)

	rows, err := q.RecordGatewayEventFailure(ctx, "evt_3", "booking not found")
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	ev, err := q.GetGatewayEvent(ctx, "evt_3")
	require.NoError(t, err)
	require.Equal(t, int32(1), ev.RetryCount)
	require.NotNil(t, ev.LastError)
	require.True(t, strings.Contains(*ev.LastError, "booking not found"))

	_, err = q.MarkGatewayEventProcessed(ctx, "evt_3")
	require.NoError(t, err)

	rows, err = q.RecordGatewayEventFailure(ctx, "evt_3", "late failure")
	require.NoError(t, err)
	require.Equal(t, int64(0), rows)
}

func TestListUnprocessedGatewayEventsOldestFirst(t *testing.T) {
	pool := setupEventsDB(t)
	defer pool.Close()

	q := New(pool)
	ctx := context.Background()

	for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
		_, err := q.InsertGatewayEventIfAbsent(ctx, id, "charge.succeeded", []byte(`{}`))
		require.NoError(t, err)
	}
	_, err := q.MarkGatewayEventProcessed(ctx, "evt_b")
	require.NoError(t, err)

	events, err := q.ListUnprocessedGatewayEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt_a", events[0].ID)
	require.Equal(t, "evt_c", events[1].ID)
}
