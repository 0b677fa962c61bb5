package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bizgrid.org/internal/audit"
	"bizgrid.org/internal/identity"
	"bizgrid.org/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  session.Identity `json:"user"`
	Token string           `json:"token"`
}

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Admin         bool              `json:"admin"`
	Tier          string            `json:"tier,omitempty"`
	User          *session.Identity `json:"user,omitempty"`
	AsOf          time.Time         `json:"as_of"`
}

func (a *API) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.authn == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication disabled")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	id, token, err := a.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}

	if err := a.sessions.SetAuth(r.Context(), id, token); err != nil {
		writeError(w, r, http.StatusInternalServerError, "session persistence failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  id.ID,
		"username": id.Username,
	})

	writeJSON(w, http.StatusOK, loginResponse{User: id, Token: token})
}

func (a *API) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	id, hadIdentity := a.sessions.Identity()
	if err := a.sessions.ClearAuth(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "session persistence failed")
		return
	}
	// Entitlements are per-user; logging out invalidates the local cache too.
	if a.entitlements != nil {
		if err := a.entitlements.ClearAccess(r.Context()); err != nil {
			writeError(w, r, http.StatusInternalServerError, "entitlement persistence failed")
			return
		}
	}

	fields := map[string]any{}
	if hadIdentity {
		fields["user_id"] = id.ID
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", fields)

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleAuthSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	resp := sessionResponse{
		Authenticated: a.sessions.IsAuthenticated(),
		Admin:         a.sessions.IsAdmin(),
		Tier:          a.sessions.Tier(),
		AsOf:          time.Now().UTC(),
	}
	if id, ok := a.sessions.Identity(); ok {
		resp.User = &id
	}
	writeJSON(w, http.StatusOK, resp)
}
