package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockGateway simulates the external gateway's read API for local runs and
// tests. Intents are seeded with Put; lookups can be given artificial
// latency and a failure rate.
type MockGateway struct {
	mu      sync.RWMutex
	intents map[string]*PaymentIntent

	// FailureRate is the probability of a transient failure (0.0 to 1.0).
	FailureRate float64
	// Latency delays each lookup to simulate a network round trip.
	Latency time.Duration
}

// NewMockGateway creates an empty deterministic mock.
func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]*PaymentIntent)}
}

// Put seeds or replaces an intent.
func (g *MockGateway) Put(intent *PaymentIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := *intent
	copied.Refunds = append([]Refund(nil), intent.Refunds...)
	g.intents[intent.ID] = &copied
}

// GetPaymentIntent returns the seeded intent or ErrIntentNotFound.
func (g *MockGateway) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if g.Latency > 0 {
		select {
		case <-time.After(g.Latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("gateway call canceled: %w", ctx.Err())
		}
	}
	if g.FailureRate > 0 && rand.Float64() < g.FailureRate {
		return nil, fmt.Errorf("gateway temporarily unavailable")
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	copied := *intent
	copied.Refunds = append([]Refund(nil), intent.Refunds...)
	return &copied, nil
}
