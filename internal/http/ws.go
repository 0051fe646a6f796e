package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/poller"
	"ppe-dashboard/internal/service"
	"ppe-dashboard/internal/view"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
	wsReadLimit    = 512
	recentLimit    = 5
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// pushMessage carries one poller update, already turned into view models.
type pushMessage struct {
	Type      string         `json:"type"`
	State     poller.State   `json:"state"`
	Origin    backend.Origin `json:"origin,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	Data      any            `json:"data"`
}

func (h *Handler) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("remote_addr", c.ClientIP()).
			Msg("failed to upgrade to websocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	activity, stopActivity := h.session.Activity.Subscribe()
	defer stopActivity()
	feed, stopFeed := h.session.Feed.Subscribe()
	defer stopFeed()
	status, stopStatus := h.session.Status.Subscribe()
	defer stopStatus()

	h.log.Debug().Str("remote_addr", c.ClientIP()).Msg("websocket client connected")

	initial := []pushMessage{
		h.activityMessage(h.session.Activity.Snapshot()),
		h.feedMessage(h.session.Feed.Snapshot()),
		h.statusMessage(h.session.Status.Snapshot()),
	}
	for _, msg := range initial {
		if err := writePush(conn, msg); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		var msg pushMessage
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-activity:
			if !ok {
				return
			}
			msg = h.activityMessage(snap)
		case snap, ok := <-feed:
			if !ok {
				return
			}
			msg = h.feedMessage(snap)
		case snap, ok := <-status:
			if !ok {
				return
			}
			msg = h.statusMessage(snap)
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		if err := writePush(conn, msg); err != nil {
			h.log.Debug().Err(err).Str("type", msg.Type).Msg("websocket write failed")
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}

func writePush(conn *websocket.Conn, msg pushMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func (h *Handler) activityMessage(snap poller.Snapshot[service.Activity]) pushMessage {
	return pushMessage{
		Type:      "activity",
		State:     snap.State,
		Origin:    snap.Origin,
		Error:     snap.Error(),
		UpdatedAt: snap.UpdatedAt,
		Data: map[string]any{
			"rows":       view.LogRows(snap.Data.Logs.Logs, h.now()),
			"violations": h.violationRows(recentLimit),
			"cards":      h.statCards(),
		},
	}
}

func (h *Handler) feedMessage(snap poller.Snapshot[service.Feed]) pushMessage {
	return pushMessage{
		Type:      "feed",
		State:     snap.State,
		Origin:    snap.Origin,
		Error:     snap.Error(),
		UpdatedAt: snap.UpdatedAt,
		Data: map[string]any{
			"feeds": h.feeds(),
			"cards": h.statCards(),
		},
	}
}

func (h *Handler) statusMessage(snap poller.Snapshot[service.SystemStatus]) pushMessage {
	return pushMessage{
		Type:      "status",
		State:     snap.State,
		Origin:    snap.Origin,
		Error:     snap.Error(),
		UpdatedAt: snap.UpdatedAt,
		Data: map[string]any{
			"items":  h.systemItems(),
			"active": h.session.Active(),
		},
	}
}
