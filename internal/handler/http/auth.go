package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/authgate/auth-service/pkg/errors"
	"github.com/authgate/auth-service/internal/service"
)

// AuthHandler serves the credential and token lifecycle endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates the auth HTTP handler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, h.logger, apperrors.InvalidInput("invalid request body"))
		return
	}

	pair, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, pair)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, h.logger, apperrors.InvalidInput("invalid request body"))
		return
	}

	pair, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh handles POST /auth/refresh. The presented refresh token stays
// valid; only a new access token comes back.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, h.logger, apperrors.InvalidInput("invalid request body"))
		return
	}

	accessToken, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
}

// Logout handles POST /auth/logout. The refresh token to invalidate rides in
// the Authorization header as a bearer value.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(r.Context(), w, h.logger, apperrors.InvalidInput("missing refresh token"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "logged out successfully")
}

// Basic handles GET /auth/basic, the legacy password check that issues no
// tokens. Credentials arrive via standard HTTP Basic auth.
func (h *AuthHandler) Basic(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		writeError(r.Context(), w, h.logger, apperrors.Unauthorized("missing basic auth credentials"))
		return
	}

	if err := h.auth.AuthorizeBasic(r.Context(), username, password); err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Authorized")
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
