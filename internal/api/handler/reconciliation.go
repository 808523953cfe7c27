package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/skylark-travel/flightpay/internal/service"
	"github.com/skylark-travel/flightpay/internal/worker"
	"go.uber.org/zap"
)

// ReconciliationHandler exposes the admin trigger for reconciliation runs.
type ReconciliationHandler struct {
	worker *worker.ReconciliationWorker
}

// NewReconciliationHandler creates a new ReconciliationHandler instance.
func NewReconciliationHandler(w *worker.ReconciliationWorker) *ReconciliationHandler {
	return &ReconciliationHandler{worker: w}
}

type triggerReconciliationRequest struct {
	BatchSize int32 `json:"batch_size"`
}

// TriggerRun handles POST /v1/admin/reconciliation/run (admin only).
// The run executes in the background; the response carries the job id.
func (h *ReconciliationHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.BatchSize < 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-batch-size", "batch_size must be non-negative")
		return
	}

	jobID, err := h.worker.Trigger(req.BatchSize)
	if err != nil {
		if errors.Is(err, service.ErrReconciliationRunning) {
			RespondError(w, r, http.StatusConflict, "reconciliation/already-running", "A reconciliation run is already in progress")
			return
		}
		zap.L().Error("trigger reconciliation failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "reconciliation/trigger-failed", "Failed to trigger reconciliation")
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": "running",
	})
}
