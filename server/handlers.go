package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 5 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewUpdate(s.source.Snapshot()))
}

// handleWait is a long-poll: it answers as soon as the store moves past the generation
// given in the query string, or past the current one when the parameter is missing.
// A generation ahead of the store comes from a client that outlived a restart and
// waits for the next update like a missing one.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	lastSeen := s.source.Generation()

	if v := r.URL.Query().Get("generation"); v != "" {
		gen, err := strconv.ParseUint(v, 10, 64)

		if err != nil {
			http.Error(w, "invalid generation: "+err.Error(), http.StatusBadRequest)
			return
		}

		if gen < lastSeen {
			lastSeen = gen
		}
	}

	snap, err := s.source.WaitForChange(r.Context(), lastSeen)

	if err != nil {
		// client went away or the server is shutting down, nobody to answer to.
		log.Trace().Err(err).Uint64("Generation", lastSeen).Msg("server: long-poll abandoned")
		return
	}

	writeJSON(w, http.StatusOK, NewUpdate(snap))
}

// handleWebSocket pushes the current snapshot and then one message per generation the
// connection manages to observe. Slow clients skip intermediate generations.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)

	if err != nil {
		log.Debug().Err(err).Msg("server: websocket upgrade failed")
		return
	}

	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read side only exists to notice the client closing the connection.
	go func() {
		defer cancel()

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	log.Debug().Str("Remote", r.RemoteAddr).Msg("server: websocket client connected")

	snap := s.source.Snapshot()

	for {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return
		}

		if err := conn.WriteJSON(NewUpdate(snap)); err != nil {
			log.Debug().Err(err).Str("Remote", r.RemoteAddr).Msg("server: websocket write failed")
			return
		}

		snap, err = s.source.WaitForChange(ctx, snap.Generation)

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Msg("server: websocket wait failed")
			}

			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second),
			)

			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("server: failed to write response")
	}
}
