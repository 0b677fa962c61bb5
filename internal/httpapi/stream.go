package httpapi

import (
	"encoding/json"
	"net/http"

	"bizgrid.org/internal/notification"
)

// streamNotifications handles Server-Sent Events over the notification feed.
// Every store mutation pushes the full snapshot; a client that falls behind
// only ever misses intermediate states, never the latest one.
func (a *API) streamNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Buffer one pending snapshot; a newer one simply replaces it.
	updates := make(chan []notification.Record, 1)
	unsubscribe := a.notifications.Subscribe(func(feed []notification.Record) {
		for {
			select {
			case updates <- feed:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	// Establish the stream before the first event.
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case feed := <-updates:
			payload, err := json.Marshal(feed)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
