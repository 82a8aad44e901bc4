package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn implements Conn on top of a gorilla websocket connection.
// Writes go through a bounded queue drained by writePump.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Send enqueues message. A full queue closes the connection; the client
// recovers through reconnect and a fresh snapshot.
func (c *wsConn) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		c.closeLocked()
		return false
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *wsConn) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Handler returns the gin handler that accepts subscriber connections.
// Mount it once; every connection on the route is treated identically.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeWS(c.Writer, c.Request)
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	conn := newWSConn(ws, h.opts.SendBuffer)
	h.track(conn)
	h.logger.Debug().
		Str("conn_id", conn.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection accepted")

	go h.writePump(conn)
	h.readPump(conn)
}

func (h *Hub) track(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accepted[c] = struct{}{}
}

func (h *Hub) untrack(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.accepted, c)
}

// readPump feeds inbound frames to HandleMessage and cleans up on close or error.
func (h *Hub) readPump(c *wsConn) {
	defer func() {
		h.Remove(c)
		h.untrack(c)
		c.close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(h.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		h.HandleMessage(c, data)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (h *Hub) writePump(c *wsConn) {
	pingPeriod := (h.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("WebSocket write failed")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.opts.WriteWait))
			return
		}
	}
}

// Close disconnects every accepted connection. Subscribers are removed as
// their read loops exit.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.accepted {
		c.close()
	}
	h.logger.Info().Int("connections", len(h.accepted)).Msg("WebSocket hub closed")
}
