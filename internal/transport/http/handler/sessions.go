package handler

import (
	"encoding/json"
	"net/http"

	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/token"
	"github.com/otp-auth-api/internal/application/user"
	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// SessionHandler handles the login flow and session lifecycle.
type SessionHandler struct {
	users  user.Service
	tokens token.Service
}

func NewSessionHandler(users user.Service, tokens token.Service) *SessionHandler {
	return &SessionHandler{users: users, tokens: tokens}
}

// Login starts a passwordless login: it sends an OTP to the account's
// identifier.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req user.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.users.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "login code sent", res)
}

// VerifyLogin exchanges a correct login code for an access/refresh pair.
func (h *SessionHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	auth, res, err := h.users.VerifyLogin(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if auth == nil {
		writeVerifyResult(w, res, "", nil)
		return
	}
	writeData(w, http.StatusOK, "login successful", auth)
}

// Refresh rotates a refresh token into a fresh session.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken required")
		return
	}
	sess, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "session refreshed", sess)
}

// Logout revokes the presented access token. Idempotent.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.tokens.Revoke(r.Context(), id.Token); err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "logged out", nil)
}

// LogoutAll revokes every token belonging to the caller.
func (h *SessionHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.tokens.RevokeAll(r.Context(), id.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "all sessions revoked", nil)
}
