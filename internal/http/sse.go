package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// handleEvents streams group change events over server-sent events. The
// payload is thin: group id, change kind and timestamp. Clients re-fetch
// whatever state they display.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	if _, err := s.requireMember(r, groupID); err != nil {
		writeError(w, r, err)
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
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.registry.Subscribe(groupID)
	defer sub.Close()

	slog.InfoContext(r.Context(), "Live session opened",
		"group_id", groupID,
		"sessions", s.registry.Sessions(groupID))

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.InfoContext(r.Context(), "Live session closed", "group_id", groupID)
			return

		case ev, open := <-sub.C:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.ErrorContext(r.Context(), "Failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()

		case <-heartbeat.C:
			// Comment line keeps proxies from timing out the stream.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
