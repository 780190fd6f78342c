package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The runtime binds to localhost or a trusted LAN; origins vary by install.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProjectWS streams one project's store-change events. The first frame is
// always {type:"init"} with a project snapshot; event frames follow in
// commit order.
func (h *Handlers) ProjectWS(w http.ResponseWriter, r *http.Request) {
	slug, err := h.project(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Loader.GetProject(slug)
	if err != nil {
		respondError(w, r, err)
		return
	}
	init := map[string]any{
		"type":       "init",
		"project":    p,
		"pages":      h.Loader.CountPages(slug),
		"workspaces": h.Loader.CountWorkspaces(slug),
	}
	h.serveWS(w, r, "ws:"+slug, bus.ProjectFilter(slug), init)
}

// CommandCenterWS streams fleet-wide events with an awareness snapshot as
// the init frame.
func (h *Handlers) CommandCenterWS(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Aggregator.Snapshot()
	if err != nil {
		respondError(w, r, err)
		return
	}
	init := map[string]any{
		"type":  "init",
		"state": snap,
	}
	h.serveWS(w, r, "ws:command-center", nil, init)
}

func (h *Handlers) serveWS(w http.ResponseWriter, r *http.Request, name string, filter bus.Filter, init any) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Str("subscriber", name).Msg("websocket upgrade failed")
		return
	}

	// Subscribe before sending init: events committed after the snapshot was
	// built are queued, not lost.
	sub := h.Bus.Subscribe(name, filter)
	defer h.Bus.Unsubscribe(sub)
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(init); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
