package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/session"
)

const (
	eventBuffer       = 64
	keepAliveInterval = 15 * time.Second
)

// eventsHandler streams session events as server-sent events. The first
// event is always the current state.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, errors.ErrCodeOperationFailed, "Streaming is not supported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.Session.Subscribe(eventBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, session.Event{Kind: session.EventState, State: s.Session.Snapshot()}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				s.Logger.Debug("Event stream closed", "error", err.Error())
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
