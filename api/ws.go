package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kilianp07/fleetroute/core/model"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsObserver pushes route snapshots to one websocket client.
type wsObserver struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex
}

func (o *wsObserver) ID() string { return o.id }

func (o *wsObserver) Send(ctx context.Context, routes []model.RouteView) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := o.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if routes == nil {
		routes = []model.RouteView{}
	}
	return o.conn.WriteJSON(routes)
}

// RouteUpdates handles GET /ws/routes. The client receives the current
// snapshot on connect and every committed change afterwards. Incoming
// frames are read and discarded until the connection closes.
func (h *Handlers) RouteUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}
	obs := &wsObserver{id: "ws:" + uuid.NewString(), conn: conn}
	ctx := context.WithoutCancel(r.Context())

	if err := h.planner.Attach(ctx, obs); err != nil {
		h.log.Warnf("websocket %s initial snapshot: %v", obs.id, err)
		_ = conn.Close()
		return
	}

	registry := h.planner.Observers()
	h.log.Debugf("websocket %s connected", obs.id)
	defer func() {
		registry.Remove(obs.id)
		_ = conn.Close()
		h.log.Debugf("websocket %s disconnected", obs.id)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
