package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/notify"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 500)
	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": s.notifySvc.List(limit)})
}

func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "client_id required")
		return
	}
	var rolePtr *string
	if u := authUserFromContext(r.Context()); u != nil {
		role := string(u.Role)
		rolePtr = &role
	}
	client := notify.NewSSEClient(clientID, rolePtr)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	// Send an initial comment to flush headers and keep the connection alive.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-client.MessageChan:
			if msg == nil {
				return
			}
			payload, _ := json.Marshal(msg)
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
