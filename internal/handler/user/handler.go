// Package user exposes account registration and login; tokens issued here
// are the credentials the session gateway verifies.
package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
	"github.com/yashkumarsingh-dev/ai-developer/backend/pkg/utils"
)

// Handler serves the account endpoints.
type Handler struct {
	store store.Store
	auth  *auth.Service
}

// New creates the account handler.
func New(st store.Store, authSvc *auth.Service) *Handler {
	return &Handler{store: st, auth: authSvc}
}

// RegisterRoutes mounts the account routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/register", h.handleRegister)
	r.Post("/users/login", h.handleLogin)
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  any       `json:"user"`
	Token string    `json:"token"`
	Exp   time.Time `json:"expiresAt"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
	if payload.Email == "" || !strings.Contains(payload.Email, "@") {
		utils.RespondError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(payload.Password) < 6 {
		utils.RespondError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	account, err := h.store.CreateUser(r.Context(), payload.Email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.RespondError(w, http.StatusConflict, "email already registered")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, exp, err := h.auth.Issue(account.ID, account.Email)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{User: account, Token: token, Exp: exp})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(payload.Email)))
	if err != nil || !auth.CheckPassword(account.PasswordHash, payload.Password) {
		utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, exp, err := h.auth.Issue(account.ID, account.Email)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{User: account, Token: token, Exp: exp})
}
