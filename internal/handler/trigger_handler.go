// internal/handler/trigger_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/auth"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// TriggerHandler is the entry point for the external job scheduler.
type TriggerHandler struct {
	Auth        *auth.CallbackAuthenticator
	Coordinator *service.DailyRunCoordinator
	Logger      *zap.Logger
}

// HandleDailyRun authenticates the trigger and executes one daily run.
// An overlapping trigger gets 200 with a run_in_progress status so the
// external scheduler does not treat it as a delivery failure.
func (h *TriggerHandler) HandleDailyRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Authenticate(r); err != nil {
		var authErr *appErrors.AuthError
		if errors.As(err, &authErr) {
			h.Logger.Warn("trigger rejected", zap.String("reason", authErr.Reason))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	summary, err := h.Coordinator.TriggerRun(r.Context())
	if err != nil {
		var inProgress *appErrors.ErrRunInProgress
		if errors.As(err, &inProgress) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "run_in_progress"})
			return
		}
		h.Logger.Error("daily run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
