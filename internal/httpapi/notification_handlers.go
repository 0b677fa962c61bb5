package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bizgrid.org/internal/audit"
	"bizgrid.org/internal/notification"
)

type listNotificationsResponse struct {
	Items       []notification.Record `json:"items"`
	UnreadCount int                   `json:"unread_count"`
	AsOf        time.Time             `json:"as_of"`
}

func (a *API) handleNotificationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listNotifications(w, r)
	case http.MethodPost:
		a.createNotification(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	var items []notification.Record
	switch {
	case r.URL.Query().Get("type") != "":
		kind := notification.Type(r.URL.Query().Get("type"))
		if !kind.Valid() {
			writeError(w, r, http.StatusBadRequest, "unknown notification type")
			return
		}
		items = a.notifications.NotificationsByType(kind)
	case r.URL.Query().Get("priority") == "high":
		items = a.notifications.HighPriority()
	default:
		items = a.notifications.Notifications()
	}
	if items == nil {
		items = []notification.Record{}
	}

	writeJSON(w, http.StatusOK, listNotificationsResponse{
		Items:       items,
		UnreadCount: a.notifications.UnreadCount(),
		AsOf:        time.Now().UTC(),
	})
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	var draft notification.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return
	}

	record, err := a.notifications.Add(r.Context(), draft)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidDraft) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "notification persistence failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "notification.create", map[string]any{
		"notification_id": record.ID,
		"type":            string(record.Type),
	})

	w.Header().Set("Location", "/v1/notifications/"+record.ID)
	writeJSON(w, http.StatusCreated, record)
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	path = strings.TrimSuffix(path, "/")

	switch path {
	case "":
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	case "stream":
		a.streamNotifications(w, r)
		return
	case "read-all":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.notifications.MarkAllAsRead(r.Context()); err != nil {
			writeError(w, r, http.StatusInternalServerError, "notification persistence failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unread_count": 0})
		return
	case "unread-count":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"unread_count": a.notifications.UnreadCount(),
		})
		return
	case "purge":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.notifications.ClearOld(r.Context()); err != nil {
			writeError(w, r, http.StatusInternalServerError, "notification persistence failed")
			return
		}
		remaining := len(a.notifications.Notifications())
		_ = audit.LogEvent(r.Context(), "notification.purge", map[string]any{
			"remaining": remaining,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"remaining": remaining,
		})
		return
	}

	if id, ok := strings.CutSuffix(path, "/read"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		// Unknown ids are a deliberate no-op, mirroring the store contract.
		if err := a.notifications.MarkAsRead(r.Context(), id); err != nil {
			writeError(w, r, http.StatusInternalServerError, "notification persistence failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"unread_count": a.notifications.UnreadCount(),
		})
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := a.notifications.Delete(r.Context(), path); err != nil {
			writeError(w, r, http.StatusInternalServerError, "notification persistence failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}
