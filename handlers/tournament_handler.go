package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		TournamentType string `json:"tournament_type"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	instance, err := h.tournamentService.Create(r.Context(), eventID, input.TournamentType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"tournament": instance}, nil)
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	instance, err := h.tournamentService.Get(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": instance}, nil)
}

func (h *TournamentHandler) RegisterParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	seeds, err := h.tournamentService.RegisterParticipants(r.Context(), eventID)
	if err != nil {
		// A mid-run authority failure still registered some seeds.
		if len(seeds) > 0 && isAuthorityError(err) {
			writeJSON(w, http.StatusBadGateway, jsonResponse{"seeds": seeds, "error": err.Error()}, nil)
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"seeds": seeds}, nil)
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	instance, err := h.tournamentService.Start(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": instance}, nil)
}

func (h *TournamentHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	finalized, err := h.tournamentService.FinalizeIfComplete(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"finalized": finalized}, nil)
}
