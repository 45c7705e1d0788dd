package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/services"
)

const maxPhotoSize = 10 << 20 // 10MB

type CompetitorHandler struct {
	competitorService services.CompetitorService
}

func NewCompetitorHandler(competitorService services.CompetitorService) *CompetitorHandler {
	return &CompetitorHandler{competitorService: competitorService}
}

func (h *CompetitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CompetitorInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competitor, err := h.competitorService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"competitor": competitor}, nil)
}

func (h *CompetitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competitor, err := h.competitorService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil)
}

func (h *CompetitorHandler) List(w http.ResponseWriter, r *http.Request) {
	competitors, err := h.competitorService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"competitors": competitors}, nil)
}

func (h *CompetitorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.CompetitorInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competitor, err := h.competitorService.Update(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil)
}

func (h *CompetitorHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		CheckedIn bool `json:"checked_in"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competitor, err := h.competitorService.SetCheckedIn(r.Context(), id, input.CheckedIn)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil)
}

func (h *CompetitorHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	competitor, err := h.competitorService.UploadPhoto(r.Context(), id, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil)
}

func (h *CompetitorHandler) Standings(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competitors, err := h.competitorService.Standings(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"standings": competitors}, nil)
}
