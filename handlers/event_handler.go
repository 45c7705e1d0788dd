package handlers

import (
	"errors"
	"net/http"

	"github.com/brickrace/race-server/repositories"
	"github.com/brickrace/race-server/services"
)

type EventHandler struct {
	eventRepo         repositories.EventRepository
	phaseService      services.PhaseService
	tournamentService services.TournamentService
}

func NewEventHandler(
	eventRepo repositories.EventRepository,
	phaseService services.PhaseService,
	tournamentService services.TournamentService,
) *EventHandler {
	return &EventHandler{
		eventRepo:         eventRepo,
		phaseService:      phaseService,
		tournamentService: tournamentService,
	}
}

func (h *EventHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventRepo.GetActive(r.Context())
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			notFoundResponse(w, r)
			return
		}
		serverErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventRepo.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			notFoundResponse(w, r)
			return
		}
		serverErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"event": event}, nil)
}

// Phase reports where the event is in its lifecycle, derived from stored
// state rather than a tracked flag.
func (h *EventHandler) Phase(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phase, err := h.phaseService.Resolve(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"phase": phase}, nil)
}

// Status is the race-day dashboard: event, phase, heat counters, and the
// authority's view of the tournament.
func (h *EventHandler) Status(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := h.tournamentService.Status(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": status}, nil)
}
