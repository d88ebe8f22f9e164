package httpapi

import (
	"net/http"
	"strings"

	"skillreel.org/internal/auth"
)

// withAuth resolves the bearer token into a caller identity. Read
// endpoints stay open so anyone can browse the catalog; everything
// that writes or answers "who am I" needs a valid token.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authorization header must use the Bearer scheme")
			return
		}
		identity, err := auth.ParseAndValidate(strings.TrimSpace(token))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/", "/healthz", "/readyz", "/metrics", "/v1/info", "/v1/auth/token":
		return true
	}
	if r.Method != http.MethodGet {
		return false
	}
	switch {
	case r.URL.Path == "/v1/watch/stream":
		return true
	case r.URL.Path == "/v1/videos", strings.HasPrefix(r.URL.Path, "/v1/videos/"):
		return true
	case strings.HasPrefix(r.URL.Path, "/v1/profiles/") && r.URL.Path != "/v1/profiles/me":
		return true
	}
	return false
}
