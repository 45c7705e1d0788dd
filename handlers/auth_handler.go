package handlers

import (
	"net/http"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// @Summary Operator login
// @Tags auth
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	operator, token, err := h.authService.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"operator": operator, "token": token}, nil)
}

// CreateOperator godoc
// @Summary Create a staff account
// @Tags auth
// @Router /auth/operators [post]
func (h *AuthHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string              `json:"username"`
		Password string              `json:"password"`
		Role     models.OperatorRole `json:"role"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Role == "" {
		input.Role = models.RoleViewer
	}

	operator, err := h.authService.CreateOperator(r.Context(), input.Username, input.Password, input.Role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, jsonResponse{"operator": operator}, nil)
}
