package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/notification"
	"github.com/skylark-travel/flightpay/internal/observability"
	"github.com/skylark-travel/flightpay/internal/repository"
	"go.uber.org/zap"
)

// Outcome classifies what processing an event actually did, so the HTTP
// layer can pick a response code without string-matching errors.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

// EventResult reports the disposition of one gateway event.
type EventResult struct {
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	Outcome   Outcome `json:"outcome"`
}

// WebhookService ingests payment-gateway events: signature verification,
// typed decode, event-store dedupe, and a single transaction around the
// booking transition, ledger append and processed marker.
type WebhookService struct {
	store    QueryStore
	booking  *BookingService
	notifier notification.Notifier
	hmacKey  []byte
	skipSig  bool
}

func NewWebhookService(store QueryStore, booking *BookingService, notifier notification.Notifier, hmacKey string, skipSignature bool) *WebhookService {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &WebhookService{
		store:    store,
		booking:  booking,
		notifier: notifier,
		hmacKey:  []byte(hmacKey),
		skipSig:  skipSignature,
	}
}

// HandleInboundEvent processes one webhook delivery end to end. The caller
// maps the error classes: ErrInvalidSignature must be rejected without
// retry, domain.ErrMalformedEvent is a permanent bad request, anything else
// is retryable and the gateway's redelivery schedule drives the retry.
func (s *WebhookService) HandleInboundEvent(ctx context.Context, payload []byte, signature string) (*EventResult, error) {
	if !s.verifyHMAC(payload, signature) {
		observability.IncrementWebhookEvent("unknown", "bad_signature")
		return nil, ErrInvalidSignature
	}

	env, err := domain.DecodeEnvelope(payload)
	if err != nil {
		observability.IncrementWebhookEvent("unknown", "malformed")
		return nil, err
	}

	ev, err := domain.DecodeEnvelopeEvent(env)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEventType) {
			// Forward compatibility: acknowledge types this version does not
			// understand. The row is kept so redeliveries stay cheap.
			if ackErr := s.acknowledgeUnknown(ctx, env, payload); ackErr != nil {
				return nil, ackErr
			}
			observability.IncrementWebhookEvent(env.Type, "ignored")
			return &EventResult{EventID: env.ID, EventType: env.Type, Outcome: OutcomeIgnored}, nil
		}
		observability.IncrementWebhookEvent(env.Type, "malformed")
		return nil, err
	}

	res, err := s.ProcessEvent(ctx, ev, payload)
	if err != nil {
		observability.IncrementWebhookEvent(env.Type, "failed")
		return nil, err
	}
	observability.IncrementWebhookEvent(env.Type, string(res.Outcome))
	return res, nil
}

// ProcessEvent runs the idempotent apply path for a typed event. Both live
// webhook deliveries and reconciliation repairs funnel through here, so the
// two paths share one transaction shape and one set of invariants.
func (s *WebhookService) ProcessEvent(ctx context.Context, ev domain.Event, payload []byte) (*EventResult, error) {
	queries := s.store.Queries()

	if existing, err := queries.GetGatewayEvent(ctx, ev.EventID()); err == nil && existing.Processed {
		return &EventResult{EventID: ev.EventID(), EventType: ev.EventType(), Outcome: OutcomeAlreadyProcessed}, nil
	}

	if payload == nil {
		encoded, err := domain.EncodeEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("encode event payload: %w", err)
		}
		payload = encoded
	}

	// Insert-or-ignore under race: a concurrent delivery of the same id is
	// swallowed, and the row lock taken inside the transaction below decides
	// a single winner for the side effects.
	if _, err := queries.InsertGatewayEventIfAbsent(ctx, ev.EventID(), ev.EventType(), payload); err != nil {
		return nil, err
	}

	alreadyDone := false
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if err := s.dispatch(ctx, qtx, ev); err != nil {
			return err
		}
		rows, err := qtx.MarkGatewayEventProcessed(ctx, ev.EventID())
		if err != nil {
			return err
		}
		// Zero rows means a concurrent delivery committed first; our apply
		// was a no-op against its committed state.
		alreadyDone = rows == 0
		return nil
	})
	if err != nil {
		if _, recErr := queries.RecordGatewayEventFailure(ctx, ev.EventID(), err.Error()); recErr != nil {
			zap.L().Error("record gateway event failure", zap.Error(recErr), zap.String("event_id", ev.EventID()))
		}
		return nil, err
	}

	if alreadyDone {
		return &EventResult{EventID: ev.EventID(), EventType: ev.EventType(), Outcome: OutcomeAlreadyProcessed}, nil
	}

	s.notifyAfterCommit(ctx, ev)
	return &EventResult{EventID: ev.EventID(), EventType: ev.EventType(), Outcome: OutcomeApplied}, nil
}

func (s *WebhookService) dispatch(ctx context.Context, qtx *repository.Queries, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.ChargeSucceeded:
		return s.booking.ApplyCharge(ctx, qtx, e)
	case domain.ChargeFailed:
		return s.booking.ApplyFailure(ctx, qtx, e)
	case domain.ChargeRefunded:
		return s.booking.ApplyRefund(ctx, qtx, e)
	case domain.ChargeDisputed:
		return s.booking.ApplyDispute(ctx, qtx, e)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEventType, ev)
	}
}

func (s *WebhookService) acknowledgeUnknown(ctx context.Context, env domain.EventEnvelope, payload []byte) error {
	queries := s.store.Queries()
	if _, err := queries.InsertGatewayEventIfAbsent(ctx, env.ID, env.Type, payload); err != nil {
		return err
	}
	if _, err := queries.MarkGatewayEventProcessed(ctx, env.ID); err != nil {
		return err
	}
	return nil
}

// notifyAfterCommit enqueues the booking-confirmation job after a successful
// charge commit. Best effort: a failed enqueue is logged, never propagated.
func (s *WebhookService) notifyAfterCommit(ctx context.Context, ev domain.Event) {
	charge, ok := ev.(domain.ChargeSucceeded)
	if !ok {
		return
	}
	booking, err := s.store.Queries().GetBooking(ctx, charge.BookingID)
	if err != nil {
		zap.L().Warn("load booking for notification", zap.Error(err), zap.String("booking_id", charge.BookingID.String()))
		return
	}
	if err := s.notifier.BookingConfirmed(ctx, booking.ID, booking.UserID, charge.Amount, charge.Currency); err != nil {
		zap.L().Warn("enqueue booking confirmation", zap.Error(err), zap.String("booking_id", booking.ID.String()))
	}
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
