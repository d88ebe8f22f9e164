package httpapi

import (
	"net/http"
	"strings"

	"skillreel.org/internal/auth"
)

type roleAssignRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

func (a *API) handleRoleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req roleAssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" {
		writeError(w, r, http.StatusBadRequest, "identity is required")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.roles.Assign(r.Context(), actor, req.Identity, role); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.assigned", "identity", req.Identity, map[string]string{
		"role": string(role),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": req.Identity,
		"role":     role,
	})
}

func (a *API) handleCallerRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	role, err := a.roles.Role(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	admin, err := a.roles.IsAdmin(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": identity,
		"role":     role,
		"admin":    admin,
	})
}
