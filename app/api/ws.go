package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lysyi3m/feedsync/app/bus"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 64 * 1024
	wsTapSize      = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		slog.Warn("Rejected websocket from disallowed origin", "origin", origin)
		return false
	},
}

// StreamEvents mirrors the bus onto a websocket. Every published event is
// written as one JSON frame; inbound filters-submitted and filters-cleared
// frames are published on the bus as if a search control had sent them.
func (h *Handler) StreamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	events, stop := h.bus.Tap("ws:"+c.ClientIP(), wsTapSize)
	slog.Debug("Websocket client connected", "client", c.ClientIP())

	go h.writePump(conn, events)
	h.readPump(conn)

	stop()
	slog.Debug("Websocket client disconnected", "client", c.ClientIP())
}

func (h *Handler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket read failed", "error", err)
			}
			return
		}

		event, err := decodeInbound(message)
		if err != nil {
			slog.Warn("Ignoring websocket frame", "error", err)
			continue
		}
		h.bus.Publish(event)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, events <-chan bus.Event) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteJSON(wsMessage{
				Type:      event.Kind(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Data:      event,
			}); err != nil {
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

var (
	errMalformedFrame   = errors.New("malformed frame")
	errUnsupportedFrame = errors.New("unsupported event type")
)

// decodeInbound accepts only the control events a search form may send.
func decodeInbound(message []byte) (bus.Event, error) {
	var frame wsInbound
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, errMalformedFrame
	}

	switch frame.Type {
	case bus.KindFiltersSubmitted:
		var event bus.FiltersSubmitted
		if err := json.Unmarshal(frame.Data, &event); err != nil || event.TargetID == "" {
			return nil, errMalformedFrame
		}
		return event, nil
	case bus.KindFiltersCleared:
		var event bus.FiltersCleared
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			return nil, errMalformedFrame
		}
		return event, nil
	default:
		return nil, errUnsupportedFrame
	}
}
