package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/repository"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// BookingHandler exposes read endpoints for booking financial state.
type BookingHandler struct {
	ledgerSvc *service.LedgerService
	store     *repository.Store
}

// NewBookingHandler creates a new BookingHandler instance.
func NewBookingHandler(ledgerSvc *service.LedgerService, store *repository.Store) *BookingHandler {
	return &BookingHandler{
		ledgerSvc: ledgerSvc,
		store:     store,
	}
}

func (h *BookingHandler) authorizedBooking(w http.ResponseWriter, r *http.Request) (models.Booking, bool) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return models.Booking{}, false
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return models.Booking{}, false
	}

	booking, err := h.store.Queries().GetBooking(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			RespondError(w, r, http.StatusNotFound, "booking/not-found", "Booking not found")
			return models.Booking{}, false
		}
		zap.L().Error("get booking failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		RespondError(w, r, http.StatusInternalServerError, "booking/read-failed", "Failed to get booking")
		return models.Booking{}, false
	}
	if !isAdmin && booking.UserID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return models.Booking{}, false
	}

	return booking, true
}

// GetBooking handles GET /v1/bookings/{id}
// It returns the booking with its current status and payment state.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, booking)
}

// GetBookingLedger handles GET /v1/bookings/{id}/ledger
// It returns every ledger entry for the booking plus the derived balance.
func (h *BookingHandler) GetBookingLedger(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}

	entries, err := h.ledgerSvc.Entries(r.Context(), booking.ID)
	if err != nil {
		zap.L().Error("list ledger entries failed", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ledger/read-failed", "Failed to read ledger")
		return
	}
	balance, err := h.ledgerSvc.BalanceFor(r.Context(), booking.ID)
	if err != nil {
		zap.L().Error("derive booking balance failed", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ledger/balance-failed", "Failed to derive balance")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"booking_id": booking.ID,
		"entries":    entries,
		"count":      len(entries),
		"balance":    balance,
	})
}

// GetBookingHistory handles GET /v1/bookings/{id}/history
// It returns the recorded status transitions in order.
func (h *BookingHandler) GetBookingHistory(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.authorizedBooking(w, r)
	if !ok {
		return
	}

	history, err := h.store.Queries().ListBookingStatusHistory(r.Context(), booking.ID)
	if err != nil {
		zap.L().Error("list booking history failed", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "booking/history-read-failed", "Failed to read booking history")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"booking_id": booking.ID,
		"history":    history,
		"count":      len(history),
	})
}
