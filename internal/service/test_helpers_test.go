package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/repository"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

// setupTestDB connects to the local Postgres instance, ensures the schema
// and wipes all rows.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	ensureSchema(t, db)

	tables := []string{
		"credit_usages", "user_credits",
		"voucher_usages", "vouchers",
		"ledger_entries", "booking_status_history", "bookings",
		"gateway_events", "idempotency_keys",
	}
	for _, table := range tables {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := db.Exec(context.Background(), stmt); err != nil {
			if strings.Contains(err.Error(), "does not exist") {
				continue
			}
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}

	return db
}

func ensureSchema(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gateway_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload BYTEA,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMPTZ,
			retry_count INT NOT NULL DEFAULT 0,
			last_error TEXT,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			total_amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			payment_intent_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS booking_status_history (
			id BIGSERIAL PRIMARY KEY,
			booking_id UUID NOT NULL,
			prev_status TEXT NOT NULL,
			next_status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			booking_id UUID NOT NULL,
			user_id UUID NOT NULL,
			entry_type TEXT NOT NULL,
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL,
			external_event_id TEXT NOT NULL,
			external_charge_id TEXT,
			external_refund_id TEXT,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_external_event_id_key
			ON ledger_entries (external_event_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_refund_key
			ON ledger_entries (external_charge_id, external_refund_id)
			WHERE external_refund_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS user_credits (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			used_amount BIGINT NOT NULL DEFAULT 0 CHECK (used_amount >= 0 AND used_amount <= amount),
			source TEXT NOT NULL,
			booking_id UUID,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS credit_usages (
			id UUID PRIMARY KEY,
			credit_id UUID NOT NULL,
			booking_id UUID NOT NULL,
			user_id UUID NOT NULL,
			amount_used BIGINT NOT NULL CHECK (amount_used > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS vouchers (
			id UUID PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			voucher_type TEXT NOT NULL,
			value BIGINT NOT NULL,
			min_purchase BIGINT NOT NULL DEFAULT 0,
			max_discount BIGINT,
			valid_from TIMESTAMPTZ NOT NULL,
			valid_until TIMESTAMPTZ NOT NULL,
			max_uses INT NOT NULL,
			used_count INT NOT NULL DEFAULT 0,
			single_use_per_user BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS voucher_usages (
			id UUID PRIMARY KEY,
			voucher_id UUID NOT NULL,
			booking_id UUID NOT NULL,
			user_id UUID NOT NULL,
			discount_amount BIGINT NOT NULL,
			single_use BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS voucher_usages_single_use_key
			ON voucher_usages (voucher_id, user_id)
			WHERE single_use`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			idempotency_key TEXT PRIMARY KEY,
			request_hash TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			response_status INT,
			response_body BYTEA,
			content_type TEXT,
			in_progress BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("failed to ensure schema: %v", err)
		}
	}
}

func seedBooking(t *testing.T, store *repository.Store, userID uuid.UUID, status string, amount int64) models.Booking {
	t.Helper()

	booking := models.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        status,
		PaymentStatus: domain.PaymentStatusUnpaid,
		TotalAmount:   amount,
		Currency:      "USD",
	}
	if status == domain.BookingStatusConfirmed {
		booking.PaymentStatus = domain.PaymentStatusPaid
	}
	if err := store.Queries().CreateBooking(context.Background(), &booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return booking
}

func seedVoucher(t *testing.T, store *repository.Store, v models.Voucher) models.Voucher {
	t.Helper()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Code = NormalizeCode(v.Code)
	if v.ValidFrom.IsZero() {
		v.ValidFrom = time.Now().Add(-time.Hour)
	}
	if v.ValidUntil.IsZero() {
		v.ValidUntil = time.Now().Add(time.Hour)
	}
	if err := store.Queries().CreateVoucher(context.Background(), &v); err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	return v
}
