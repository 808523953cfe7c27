package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// VoucherHandler handles HTTP requests for voucher validation and redemption.
type VoucherHandler struct {
	voucherSvc *service.VoucherService
}

// NewVoucherHandler creates a new VoucherHandler instance.
func NewVoucherHandler(voucherSvc *service.VoucherService) *VoucherHandler {
	return &VoucherHandler{
		voucherSvc: voucherSvc,
	}
}

// ValidateVoucherRequest represents the request body for validating a voucher.
type ValidateVoucherRequest struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// ValidateVoucher handles POST /v1/vouchers/validate
// It returns the discount the voucher would yield without consuming a use.
func (h *VoucherHandler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req ValidateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Code == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-code", "code is required")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero")
		return
	}

	quote, err := h.voucherSvc.Validate(r.Context(), req.Code, &actorID, req.Amount)
	if err != nil {
		writeVoucherError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, quote)
}

// ApplyVoucherRequest represents the request body for redeeming a voucher.
type ApplyVoucherRequest struct {
	Code      string `json:"code"`
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
}

// ApplyVoucher handles POST /v1/vouchers/apply
// It consumes one use of the voucher against the given booking.
func (h *VoucherHandler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req ApplyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Code == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-code", "code is required")
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

	application, err := h.voucherSvc.Apply(r.Context(), req.Code, bookingID, actorID, req.Amount)
	if err != nil {
		writeVoucherError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, application)
}

func writeVoucherError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrVoucherNotFound):
		RespondError(w, r, http.StatusNotFound, "voucher/not-found", "Voucher not found")
	case errors.Is(err, service.ErrVoucherInactive):
		RespondError(w, r, http.StatusBadRequest, "voucher/inactive", err.Error())
	case errors.Is(err, service.ErrVoucherNotYetValid):
		RespondError(w, r, http.StatusBadRequest, "voucher/not-yet-valid", err.Error())
	case errors.Is(err, service.ErrVoucherExpired):
		RespondError(w, r, http.StatusBadRequest, "voucher/expired", err.Error())
	case errors.Is(err, service.ErrVoucherExhausted):
		RespondError(w, r, http.StatusConflict, "voucher/exhausted", err.Error())
	case errors.Is(err, service.ErrMinimumPurchaseNotMet):
		RespondError(w, r, http.StatusBadRequest, "voucher/minimum-purchase", err.Error())
	case errors.Is(err, service.ErrAlreadyUsed):
		RespondError(w, r, http.StatusConflict, "voucher/already-used", err.Error())
	default:
		zap.L().Error("voucher operation failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "voucher/operation-failed", "Failed to process voucher")
	}
}
