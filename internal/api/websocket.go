package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ernie/teamkeeper/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// clientAddr reports where a websocket client connected from, preferring
// proxy-forwarded addresses since the daemon normally sits behind one
func clientAddr(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}

// EventFeed fans bus events out to websocket subscribers. The feed is
// one-way: clients only listen, and a client that cannot keep up is
// dropped rather than allowed to stall delivery for everyone else.
type EventFeed struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	events  chan []byte
	done    chan struct{}
}

// feedClient is one websocket subscriber
type feedClient struct {
	feed       *EventFeed
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// NewEventFeed creates an event feed
func NewEventFeed() *EventFeed {
	return &EventFeed{
		clients: make(map[*feedClient]struct{}),
		events:  make(chan []byte, 256),
		done:    make(chan struct{}),
	}
}

// Publish queues an event for delivery to all connected clients
func (f *EventFeed) Publish(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	select {
	case f.events <- data:
	default:
		log.Printf("Event feed backlog full, dropping event")
	}
}

// Run delivers queued events until Stop is called
func (f *EventFeed) Run() {
	for {
		select {
		case <-f.done:
			f.closeAll()
			return
		case data := <-f.events:
			f.deliver(data)
		}
	}
}

// Stop ends delivery and disconnects all clients
func (f *EventFeed) Stop() {
	close(f.done)
}

// deliver fans one message out. Dropping a stalled client mutates the
// client set, so the whole pass holds the write lock.
func (f *EventFeed) deliver(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		select {
		case client.send <- data:
		default:
			delete(f.clients, client)
			close(client.send)
			log.Printf("WebSocket client %s too slow, dropping (%d left)", client.remoteAddr, len(f.clients))
		}
	}
}

func (f *EventFeed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		delete(f.clients, client)
		close(client.send)
	}
}

func (f *EventFeed) add(client *feedClient) {
	f.mu.Lock()
	f.clients[client] = struct{}{}
	total := len(f.clients)
	f.mu.Unlock()
	log.Printf("WebSocket client connected from %s (%d total)", client.remoteAddr, total)
}

// remove drops a client whose connection closed. The send channel may
// already be closed if deliver evicted the client first.
func (f *EventFeed) remove(client *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
	total := len(f.clients)
	f.mu.Unlock()
	log.Printf("WebSocket client disconnected from %s (%d total)", client.remoteAddr, total)
}

// ClientCount returns the number of connected clients
func (f *EventFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// handleWebSocket upgrades HTTP to WebSocket and attaches the client to
// the event feed
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &feedClient{
		feed:       r.feed,
		conn:       conn,
		send:       make(chan []byte, 256),
		remoteAddr: clientAddr(req),
	}
	r.feed.add(client)

	go client.writePump()
	go client.readPump()
}

// readPump only surfaces closes and pong replies; incoming messages
// carry no meaning on this feed
func (c *feedClient) readPump() {
	defer func() {
		c.feed.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes feed messages and keepalive pings to the client
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
