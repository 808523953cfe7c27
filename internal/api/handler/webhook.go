package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler handles incoming payment events from the external gateway.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
	}
}

// HandlePaymentWebhook handles POST /v1/webhooks/payment
// It verifies the HMAC signature and applies the event exactly once.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	result, err := h.webhookSvc.HandleInboundEvent(r.Context(), body, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
			return
		case errors.Is(err, domain.ErrMalformedEvent):
			RespondError(w, r, http.StatusBadRequest, "webhook/malformed-event", err.Error())
			return
		default:
			// Transient failures return 5xx so the gateway redelivers.
			zap.L().Error("process payment webhook failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "webhook/processing-failed", "Failed to process event")
			return
		}
	}

	RespondJSON(w, http.StatusOK, result)
}
