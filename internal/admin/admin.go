// Package admin mounts a small introspection surface for a running
// Engine: health, Prometheus metrics, and a live session-state
// websocket stream. This is an observability accessory, not part of
// the SessionTransport wire protocol.
package admin

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/r3e-network/ensemble"
)

// MetricsHandler exposes an internal/metrics.Recorder's registry over
// HTTP without the admin package importing prometheus directly.
type MetricsHandler interface {
	Handler() http.Handler
}

// Router builds the admin HTTP surface for engine.
func Router(engine *ensemble.Engine, m MetricsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		state := engine.State()
		w.Header().Set("Content-Type", "application/json")
		if state.Terminal() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]string{"state": state.String()})
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Get("/sessions/state", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"state": engine.State().String()})
	})

	r.Get("/sessions/stream", streamHandler(engine))

	return r
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamHandler upgrades to a websocket and pushes one JSON frame per
// session-state transition until the engine reaches a terminal state
// or the client disconnects.
func streamHandler(engine *ensemble.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		write := func(state ensemble.SessionState) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteJSON(map[string]string{"state": state.String()})
		}

		if err := write(engine.State()); err != nil {
			return
		}

		for {
			next, ok := <-engine.Subscribe()
			if !ok {
				return
			}
			if err := write(next); err != nil {
				return
			}
			if next.Terminal() {
				return
			}
		}
	}
}
