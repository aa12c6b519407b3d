package httptransport

import (
	"net/http"

	"organlink/internal/platform/middleware"
)

// Debug endpoints reset demo state. They are deliberately unauthenticated in
// this deployment and must never be exposed on a public network.

func (h *Handler) handleResetMatchFlags(w http.ResponseWriter, r *http.Request) {
	if err := h.match.ResetConsumedFlags(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("consumed flags reset", "request_id", middleware.GetRequestID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "match flags reset"})
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.match.ClearAllDemoData(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("demo data cleared", "request_id", middleware.GetRequestID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "all demo data cleared"})
}
