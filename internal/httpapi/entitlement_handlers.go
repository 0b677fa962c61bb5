package httpapi

import (
	"net/http"
	"strings"
	"time"

	"bizgrid.org/internal/audit"
	"bizgrid.org/internal/entitlement"
)

type validateTokenRequest struct {
	Token  string `json:"token"`
	Module string `json:"module"`
}

type validateTokenResponse struct {
	Granted bool   `json:"granted"`
	Module  string `json:"module"`
}

type listEntitlementsResponse struct {
	Items []entitlement.Entitlement `json:"items"`
	AsOf  time.Time                 `json:"as_of"`
}

func (a *API) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listEntitlements(w, r)
	case http.MethodPost:
		a.validateToken(w, r)
	case http.MethodDelete:
		a.clearEntitlements(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listEntitlements(w http.ResponseWriter, r *http.Request) {
	items := a.entitlements.Grants()
	if items == nil {
		items = []entitlement.Entitlement{}
	}
	writeJSON(w, http.StatusOK, listEntitlementsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) validateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		writeError(w, r, http.StatusBadRequest, "module is required")
		return
	}

	granted := a.entitlements.ValidateToken(r.Context(), req.Token, module)

	_ = audit.LogEvent(r.Context(), "entitlement.validate", map[string]any{
		"module":  module,
		"granted": granted,
	})

	writeJSON(w, http.StatusOK, validateTokenResponse{
		Granted: granted,
		Module:  module,
	})
}

func (a *API) clearEntitlements(w http.ResponseWriter, r *http.Request) {
	if err := a.entitlements.ClearAccess(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "entitlement persistence failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "entitlement.clear", nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleModuleAccess answers GET /v1/modules/{module}/access from local state
// only; it never triggers a remote validation.
func (a *API) handleModuleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/modules/")
	path = strings.TrimSuffix(path, "/")
	module, ok := strings.CutSuffix(path, "/access")
	if !ok || module == "" || strings.Contains(module, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"module":     module,
		"has_access": a.entitlements.HasAccess(module),
	})
}
