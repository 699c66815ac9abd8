package portal

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"attendclient/internal/attendance"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Hub fans attendance state snapshots out to connected dashboards. A new
// client first receives the most recent snapshot.
type Hub struct {
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte
	clients    map[*hubClient]struct{}
	last       []byte
	upgrader   websocket.Upgrader
	done       chan struct{}
}

func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*hubClient]struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			if h.last != nil {
				client.send <- h.last
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case msg := <-h.broadcast:
			h.last = msg
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *hubClient) {
	delete(h.clients, client)
	close(client.send)
	client.conn.Close()
}

// Broadcast queues snap for every client. It never blocks the caller; when
// the queue is full the snapshot is dropped.
func (h *Hub) Broadcast(snap attendance.Snapshot) {
	if h == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("ws: failed to marshal snapshot: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("ws: broadcast queue full, dropping %s snapshot", snap.Phase)
	}
}

// Handler upgrades the request and streams snapshots until the peer leaves.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &hubClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		client.readPump()
	}
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound messages; it exists to process pongs and notice
// the peer closing.
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
