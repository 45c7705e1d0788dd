package handlers

import (
	"fmt"
	"net/http"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/services"
)

type BracketHandler struct {
	bracketService services.BracketService
	matchService   services.MatchService
}

func NewBracketHandler(bracketService services.BracketService, matchService services.MatchService) *BracketHandler {
	return &BracketHandler{
		bracketService: bracketService,
		matchService:   matchService,
	}
}

// Generate mirrors the authority's bracket locally. Regeneration is
// destructive and refuses once any local match is decided.
func (h *BracketHandler) Generate(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		MatchFormat models.MatchFormat `json:"match_format"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.MatchFormat == "" {
		input.MatchFormat = models.FormatSingle
	}
	if input.MatchFormat != models.FormatSingle && input.MatchFormat != models.FormatBestOf3 {
		badRequestResponse(w, r, fmt.Errorf("unsupported match format %q", input.MatchFormat))
		return
	}

	matches, err := h.bracketService.GenerateMirror(r.Context(), eventID, input.MatchFormat)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"matches": matches}, nil)
}

// Reconcile refreshes slots and ordering from the authority without
// touching decided matches.
func (h *BracketHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summary, err := h.bracketService.Reconcile(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"reconcile": summary}, nil)
}

func (h *BracketHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.bracketService.ListMatches(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil)
}

func (h *BracketHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.bracketService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil)
}

func (h *BracketHandler) ListSubRounds(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	subRounds, err := h.matchService.ListSubRounds(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"sub_rounds": subRounds}, nil)
}

// RecordTime lets an operator enter or correct a match time directly.
func (h *BracketHandler) RecordTime(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
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

	match, err := h.matchService.RecordTime(r.Context(), matchID, input.Track, input.Time)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil)
}

func (h *BracketHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		CompetitorID int    `json:"competitor_id"`
		Reason       string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Forfeit(r.Context(), matchID, input.CompetitorID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil)
}
