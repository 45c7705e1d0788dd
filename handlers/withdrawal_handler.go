package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/middleware"
	"github.com/brickrace/race-server/services"
)

type WithdrawalHandler struct {
	withdrawalService services.WithdrawalService
}

func NewWithdrawalHandler(withdrawalService services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

// Preview reports what a withdrawal would touch without changing
// anything.
func (h *WithdrawalHandler) Preview(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	competitorID, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	impact, err := h.withdrawalService.Preview(r.Context(), eventID, competitorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"impact": impact}, nil)
}

func (h *WithdrawalHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	competitorID, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var withdrawnBy *string
	if claims, ok := middleware.OperatorFromContext(r.Context()); ok && claims.Subject != "" {
		withdrawnBy = &claims.Subject
	}

	withdrawal, err := h.withdrawalService.Withdraw(r.Context(), eventID, competitorID, input.Reason, withdrawnBy)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"withdrawal": withdrawal}, nil)
}

func (h *WithdrawalHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	competitorID, err := urlParamInt(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.withdrawalService.Reinstate(r.Context(), eventID, competitorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"reinstated": true}, nil)
}

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, err := urlParamInt(r, "eventID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	withdrawals, err := h.withdrawalService.List(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"withdrawals": withdrawals}, nil)
}
