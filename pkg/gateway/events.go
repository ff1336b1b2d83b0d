package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/status"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local control surface; UIs may be served from any origin on the machine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventsHandler streams Hub events as JSON text frames. The first frame is
// a "snapshot" envelope with the latest status so a fresh UI can render
// without polling.
func (g *Gateway) eventsHandler(w http.ResponseWriter, r *http.Request) {
	hub := g.ctl.Hub()
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "events ws: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := hub.Subscribe(eventBuffer)
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{"kind": "snapshot", "snapshot": hub.Latest()}); err != nil {
		return
	}

	// Reader loop only drains control frames and notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				g.logger.ComponentDebug(logging.ComponentGateway, "events ws: write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-gone:
			return
		case <-g.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev status.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
