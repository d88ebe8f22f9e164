package httpapi

import (
	"net/http"
	"strings"
	"time"

	"skillreel.org/internal/auth"
)

type tokenRequest struct {
	Identity   string `json:"identity"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// handleAuthToken mints a development token for the given identity.
// Production deployments front this with a real identity provider.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		writeError(w, r, http.StatusBadRequest, "identity is required")
		return
	}
	ttl := time.Hour
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > 24*time.Hour {
		ttl = 24 * time.Hour
	}
	token, err := auth.GenerateToken(req.Identity, ttl)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"identity":   req.Identity,
		"expires_in": int64(ttl / time.Second),
	})
}
