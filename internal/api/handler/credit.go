package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// CreditHandler handles HTTP requests for travel credit balances and spends.
type CreditHandler struct {
	creditSvc *service.CreditService
}

// NewCreditHandler creates a new CreditHandler instance.
func NewCreditHandler(creditSvc *service.CreditService) *CreditHandler {
	return &CreditHandler{
		creditSvc: creditSvc,
	}
}

// GetBalance handles GET /v1/credits/balance
// It returns the caller's spendable credit balance in minor units.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	balance, err := h.creditSvc.AvailableBalance(r.Context(), actorID)
	if err != nil {
		zap.L().Error("get credit balance failed", zap.Error(err), zap.String("user_id", actorID.String()))
		RespondError(w, r, http.StatusInternalServerError, "credit/balance-failed", "Failed to read credit balance")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"user_id": actorID,
		"balance": balance,
	})
}

// UseCreditsRequest represents the request body for spending credits.
type UseCreditsRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
}

// UseCredits handles POST /v1/credits/use
// It allocates the requested amount across the caller's spendable credits.
func (h *CreditHandler) UseCredits(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req UseCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero")
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking_id")
		return
	}

	allocation, err := h.creditSvc.UseCredit(r.Context(), actorID, req.Amount, bookingID)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientBalance) {
			RespondError(w, r, http.StatusBadRequest, "credit/insufficient-balance", err.Error())
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("use credits failed", zap.Error(err), zap.String("user_id", actorID.String()))
		RespondError(w, r, http.StatusInternalServerError, "credit/use-failed", "Failed to use credits")
		return
	}

	RespondJSON(w, http.StatusOK, allocation)
}

// GrantCreditRequest represents the request body for granting credit (admin only).
type GrantCreditRequest struct {
	UserID    string     `json:"user_id"`
	Amount    int64      `json:"amount"`
	Source    string     `json:"source"`
	BookingID *string    `json:"booking_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// GrantCredit handles POST /v1/credits/grant (admin only).
func (h *CreditHandler) GrantCredit(w http.ResponseWriter, r *http.Request) {
	var req GrantCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	params := service.GrantCreditParams{
		UserID:    userID,
		Amount:    req.Amount,
		Source:    req.Source,
		ExpiresAt: req.ExpiresAt,
	}
	if req.BookingID != nil {
		bookingID, err := uuid.Parse(*req.BookingID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking_id")
			return
		}
		params.BookingID = &bookingID
	}

	credit, err := h.creditSvc.AddCredit(r.Context(), params)
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("grant credit failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusBadRequest, "credit/grant-failed", err.Error())
		return
	}

	RespondJSON(w, http.StatusCreated, credit)
}
