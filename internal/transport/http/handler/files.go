package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/otp-auth-api/internal/pkg/id"
	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// ImageStore is the object-storage surface for profile images.
type ImageStore interface {
	UploadBase64(ctx context.Context, key, payload string) (string, error)
}

// FileHandler handles profile-image uploads. Clients upload images first,
// then reference the returned URLs in the registration form.
type FileHandler struct {
	store ImageStore
}

func NewFileHandler(store ImageStore) *FileHandler { return &FileHandler{store: store} }

func (h *FileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body struct {
		Base64 string `json:"base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Base64 == "" {
		writeError(w, http.StatusBadRequest, "base64 field required")
		return
	}
	key := fmt.Sprintf("images/%s/%s", identity.UserID, id.New())
	url, err := h.store.UploadBase64(r.Context(), key, body.Base64)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusCreated, "image uploaded", map[string]string{"url": url})
}
