package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ernie/clickrace/internal/domain"
	"github.com/ernie/clickrace/internal/game"
)

// getClientIP extracts the real client IP, checking proxy headers first
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (may contain multiple IPs, first is the client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (strip port if present)
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client is one connected websocket client. It implements game.Conn: the
// game loop pushes outbound messages through Send, the read pump feeds
// inbound messages into the game service.
type Client struct {
	id         string
	conn       *websocket.Conn
	svc        *game.Service
	send       chan domain.Message
	remoteAddr string
	dropped    bool // game loop only
}

// ID returns the connection identity, assigned at upgrade time
func (c *Client) ID() string {
	return c.id
}

// Send enqueues a message for delivery. Called from the game loop; a client
// whose buffer is full is dropped rather than allowed to stall the loop.
func (c *Client) Send(msgType string, data any) {
	if c.dropped {
		return
	}
	select {
	case c.send <- domain.Message{Type: msgType, Data: data}:
	default:
		log.Printf("Client %s send buffer full, dropping connection", c.id)
		c.dropped = true
		close(c.send)
	}
}

// handleWebSocket upgrades HTTP to WebSocket and manages the connection
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		id:         uuid.NewString(),
		conn:       conn,
		svc:        r.svc,
		send:       make(chan domain.Message, 256),
		remoteAddr: getClientIP(req),
	}
	log.Printf("WebSocket client %s connected from %s", client.id, client.remoteAddr)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump reads client messages and dispatches them into the game service.
// A malformed frame is dropped without closing the connection; the read loop
// only exits on a transport error, which is reported as a disconnect.
func (c *Client) readPump() {
	defer func() {
		c.svc.HandleDisconnect(c)
		c.conn.Close()
		log.Printf("WebSocket client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("WebSocket error from %s: %v", c.id, err)
			}
			break
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Malformed frame from %s: %v", c.id, err)
			continue
		}
		c.svc.HandleMessage(c, env)
	}
}

// writePump sends queued messages to the WebSocket, one frame per message
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
