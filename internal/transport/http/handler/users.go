package handler

import (
	"encoding/json"
	"net/http"

	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/user"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// UserHandler handles registration and profile endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

// Register accepts the full profile form, validates it, and sends a
// registration OTP. No user exists until the code is verified.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "verification code sent", res)
}

// VerifyRegistration finalizes registration: a correct code creates the user
// and opens a session in one step.
func (h *UserHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	auth, res, err := h.svc.VerifyRegistration(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if auth == nil {
		writeVerifyResult(w, res, "", nil)
		return
	}
	writeData(w, http.StatusCreated, "registration complete", auth)
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Get(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", u)
}
