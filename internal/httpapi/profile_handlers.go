package httpapi

import (
	"net/http"
	"strings"
)

type createProfileRequest struct {
	Name string `json:"name"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// handleProfilesCollection serves POST /v1/profiles. The profile id is
// always the caller's identity; one identity, one profile.
func (a *API) handleProfilesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.svc.CreateProfile(r.Context(), identity, strings.TrimSpace(req.Name))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "profile.created", "profile", profile.ID, nil)
	writeJSON(w, http.StatusCreated, map[string]any{
		"profile": profile,
	})
}

// handleOwnProfile serves GET and PATCH /v1/profiles/me. The update
// accepts only the display name; the balance has no write path here.
func (a *API) handleOwnProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.writeProfile(w, r, identity)
	case http.MethodPatch:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		profile, err := a.svc.UpdateProfileName(r.Context(), identity, strings.TrimSpace(req.Name))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "profile.renamed", "profile", identity, nil)
		writeJSON(w, http.StatusOK, map[string]any{
			"profile": profile,
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

// handleProfileResource routes /v1/profiles/{id} and its subresources.
func (a *API) handleProfileResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/profiles/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "profile id is required")
		return
	}
	switch sub {
	case "":
		a.writeProfile(w, r, id)
	case "balance":
		balance, exists, err := a.svc.GetBalance(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"profile_id": id,
			"points":     balance,
			"exists":     exists,
		})
	case "videos":
		videos, err := a.svc.ListVideosByCreator(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"videos": videos,
		})
	case "history":
		records, err := a.svc.WatchHistory(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"history": records,
		})
	default:
		http.NotFound(w, r)
	}
}

// writeProfile answers 200 with a null profile when the id is unknown.
// Absence is an answer, not an error.
func (a *API) writeProfile(w http.ResponseWriter, r *http.Request, id string) {
	profile, exists, err := a.svc.GetProfile(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !exists {
		writeJSON(w, http.StatusOK, map[string]any{
			"profile": nil,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": profile,
	})
}
