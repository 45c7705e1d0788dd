package handlers

import (
	"fmt"
	"net/http"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/services"
)

// TimingHandler receives finish-line results from the track hardware.
// The device only knows "track N finished in T seconds"; the handler
// resolves which heat is live and routes the time accordingly.
type TimingHandler struct {
	heatService  services.HeatService
	matchService services.MatchService
}

func NewTimingHandler(heatService services.HeatService, matchService services.MatchService) *TimingHandler {
	return &TimingHandler{
		heatService:  heatService,
		matchService: matchService,
	}
}

// SubmitResult godoc
// @Summary Submit a finish-line time for the current heat
// @Tags timing
// @Router /events/{eventID}/timing/results [post]
func (h *TimingHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Track int     `json:"track"`
		Time  float64 `json:"time"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	current, _, err := h.heatService.CurrentHeat(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if current == nil {
		badRequestResponse(w, r, fmt.Errorf("no heat is currently active"))
		return
	}

	switch current.Type {
	case models.HeatTypeQualifier:
		if current.QualifierHeatNumber == nil {
			serverErrorResponse(w, r, fmt.Errorf("qualifier heat view missing heat number"))
			return
		}
		qualifier, err := h.heatService.RecordQualifierTime(r.Context(), eventID, *current.QualifierHeatNumber, input.Track, input.Time)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{"heat_type": current.Type, "qualifier": qualifier}, nil)

	case models.HeatTypeBracket:
		if current.MatchID == nil {
			serverErrorResponse(w, r, fmt.Errorf("bracket heat view missing match id"))
			return
		}
		match, err := h.matchService.RecordTime(r.Context(), *current.MatchID, input.Track, input.Time)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{"heat_type": current.Type, "match": match}, nil)

	default:
		serverErrorResponse(w, r, fmt.Errorf("unknown heat type %q", current.Type))
	}
}
