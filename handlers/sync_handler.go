package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/services"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(syncService services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// SyncMatch pushes one completed match's result to the authority.
// ?force=true re-pushes a match that already has a ledger entry.
func (h *SyncHandler) SyncMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	record, err := h.syncService.SyncMatch(r.Context(), matchID, force)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"sync_record": record}, nil)
}

// SyncEvent pushes every completed, unsynced match for the event.
// ?force=true clears the event's sync ledger first so everything is
// re-pushed. Per-match authority failures are reported in the body,
// not as an HTTP error.
func (h *SyncHandler) SyncEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	report, err := h.syncService.SyncEvent(r.Context(), eventID, force)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil)
}
