package handler

import (
	"encoding/json"
	"net/http"

	"github.com/otp-auth-api/internal/application/otp"
)

// OTPHandler exposes the generic passcode endpoints used for phone and email
// verification. Registration and login have their own flows that wrap the
// same engine.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req otp.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "OTP sent", res)
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Verify(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeVerifyResult(w, res, "identifier verified", nil)
}

func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("identifier")
	if id == "" {
		writeError(w, http.StatusBadRequest, "identifier query parameter required")
		return
	}
	verified, err := h.svc.IsIdentifierVerified(r.Context(), id)
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]bool{"verified": verified})
}

// writeVerifyResult renders a verification outcome: 200 with data on success,
// a reason-specific status with attempts-remaining otherwise.
func writeVerifyResult(w http.ResponseWriter, res *otp.VerifyResult, okMsg string, data interface{}) {
	if res.Valid {
		writeData(w, http.StatusOK, okMsg, data)
		return
	}
	status := http.StatusBadRequest
	if res.Reason == otp.ReasonNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, Envelope{
		Error: res.Message,
		Data: map[string]interface{}{
			"reason":             res.Reason,
			"attempts_remaining": res.AttemptsRemaining,
		},
	})
}
