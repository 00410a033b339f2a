package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/model"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Nickname string `json:"nickname" validate:"max=50"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// Signup регистрирует пользователя и сразу выдаёт ему токен.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Username, req.Password, req.Nickname)
	if err != nil {
		h.handleError(w, "signup", err)
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", userID))
	h.respondWithToken(w, http.StatusCreated, userID, model.RoleUser)
}

// Login проверяет логин и пароль и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, "login", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, user.ID, user.Role)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, userID int64, role model.Role) {
	token, err := h.authMiddleware.IssueToken(userID, role)
	if err != nil {
		h.handleError(w, "issue token", err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, token)
	writeJSON(w, status, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}
