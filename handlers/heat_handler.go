package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/services"
)

type HeatHandler struct {
	heatService services.HeatService
}

func NewHeatHandler(heatService services.HeatService) *HeatHandler {
	return &HeatHandler{heatService: heatService}
}

func (h *HeatHandler) GenerateQualifyingRound(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	qualifiers, err := h.heatService.GenerateQualifyingRound(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"qualifiers": qualifiers}, nil)
}

func (h *HeatHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	heats, err := h.heatService.ListHeats(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"heats": heats}, nil)
}

// Current returns the active heat and the on-deck heat. Both are null
// once every heat has run.
func (h *HeatHandler) Current(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	current, onDeck, err := h.heatService.CurrentHeat(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"current": current, "on_deck": onDeck}, nil)
}

// RecordQualifierTime lets an operator enter or correct a qualifying
// time by heat and track.
func (h *HeatHandler) RecordQualifierTime(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	heatNumber, err := urlParamInt(r, "heatNumber")
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

	qualifier, err := h.heatService.RecordQualifierTime(r.Context(), eventID, heatNumber, input.Track, input.Time)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"qualifier": qualifier}, nil)
}
