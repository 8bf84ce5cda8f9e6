package stub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	initWait       = 10 * time.Second
	maxMessageSize = 1 << 16

	closeUnauthorized = 4401
	closeInitTimeout  = 4408
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"graphql-transport-ws"},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn is one authenticated graphql-transport-ws socket.
type wsConn struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int
	send   chan []byte

	mu     sync.Mutex
	subs   map[string]string
	closed bool
}

func (s *Server) serveWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	uid, ok := s.handshake(conn)
	if !ok {
		conn.Close()
		return
	}

	client := &wsConn{
		hub:    s.hub,
		conn:   conn,
		userID: uid,
		send:   make(chan []byte, 64),
		subs:   make(map[string]string),
	}
	select {
	case s.hub.RegisterCh <- client:
	case <-s.hub.stopCh:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// handshake waits for connection_init, authenticates its payload and
// answers connection_ack.
func (s *Server) handshake(conn *websocket.Conn) (int, bool) {
	conn.SetReadDeadline(time.Now().Add(initWait))
	var init frame
	if err := conn.ReadJSON(&init); err != nil || init.Type != "connection_init" {
		closeWith(conn, closeInitTimeout, "Connection initialisation timeout")
		return 0, false
	}

	var payload struct {
		Authorization string `json:"authorization"`
	}
	json.Unmarshal(init.Payload, &payload)

	s.mu.Lock()
	s.initTokens = append(s.initTokens, bearer(payload.Authorization))
	u, err := s.authenticate(bearer(payload.Authorization))
	s.mu.Unlock()
	if err != nil {
		closeWith(conn, closeUnauthorized, "Unauthorized")
		return 0, false
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame{Type: "connection_ack"}); err != nil {
		return 0, false
	}
	return u.id, true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
}

// ConnectionTokens returns the bearer tokens received in connection_init,
// oldest first.
func (s *Server) ConnectionTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.initTokens...)
}

// ActiveSubscriptions returns the number of running subscriptions across
// every socket.
func (s *Server) ActiveSubscriptions() int { return int(s.hub.active.Load()) }

// push delivers data to every subscription on field. It reports false when
// the socket cannot keep up.
func (c *wsConn) push(field string, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	for id, f := range c.subs {
		if f != field {
			continue
		}
		payload, err := json.Marshal(map[string]any{"data": map[string]any{field: data}})
		if err != nil {
			continue
		}
		raw, _ := json.Marshal(frame{ID: id, Type: "next", Payload: payload})
		select {
		case c.send <- raw:
		default:
			return false
		}
	}
	return true
}

func (c *wsConn) enqueue(f frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// subscriptionField picks the pushed field a subscription document selects.
func subscriptionField(query string) string {
	for _, field := range []string{"messageAdded", "notificationAdded"} {
		if strings.Contains(query, field) {
			return field
		}
	}
	return ""
}

func (c *wsConn) readPump() {
	defer func() {
		c.mu.Lock()
		c.hub.active.Add(-int64(len(c.subs)))
		c.subs = map[string]string{}
		c.mu.Unlock()
		select {
		case c.hub.UnregisterCh <- c:
		case <-c.hub.stopCh:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Debug("socket read")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case "ping":
			c.enqueue(frame{Type: "pong"})
		case "subscribe":
			var req gqlRequest
			json.Unmarshal(f.Payload, &req)
			field := subscriptionField(req.Query)
			if field == "" {
				errs, _ := json.Marshal([]map[string]string{{"message": "unknown subscription"}})
				c.enqueue(frame{ID: f.ID, Type: "error", Payload: errs})
				continue
			}
			c.mu.Lock()
			if _, dup := c.subs[f.ID]; !dup {
				c.hub.active.Add(1)
			}
			c.subs[f.ID] = field
			c.mu.Unlock()
		case "complete":
			c.mu.Lock()
			if _, ok := c.subs[f.ID]; ok {
				delete(c.subs, f.ID)
				c.hub.active.Add(-1)
			}
			c.mu.Unlock()
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
