package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier enqueues best-effort notification jobs. Enqueue failures are the
// caller's to log; they must never roll back or fail the transaction that
// triggered them.
type Notifier interface {
	BookingConfirmed(ctx context.Context, bookingID, userID uuid.UUID, amount int64, currency string) error
}

const defaultQueue = "notifications:jobs"

type job struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisNotifier pushes jobs onto a Redis list consumed by the notification
// service.
type RedisNotifier struct {
	client redis.Cmdable
	queue  string
}

func NewRedisNotifier(client redis.Cmdable, queue string) *RedisNotifier {
	if queue == "" {
		queue = defaultQueue
	}
	return &RedisNotifier{client: client, queue: queue}
}

func (n *RedisNotifier) BookingConfirmed(ctx context.Context, bookingID, userID uuid.UUID, amount int64, currency string) error {
	payload, err := json.Marshal(job{
		Type:      "booking_confirmation",
		BookingID: bookingID.String(),
		UserID:    userID.String(),
		Amount:    amount,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}
	if err := n.client.LPush(ctx, n.queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification job: %w", err)
	}
	return nil
}

// NopNotifier drops every job. Used when Redis is not configured and in tests.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, uuid.UUID, uuid.UUID, int64, string) error {
	return nil
}
