// Package ws fans wavestop events out to WebSocket clients.
//
// Every message is a JSON envelope {"type", "time", "data"}. A client gets a
// "hello" envelope carrying the current status as soon as it is registered,
// then every event published after that.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope types published by wavestop.
const (
	TypeHello        = "hello"
	TypeState        = "state"
	TypeNotification = "notification"
	TypeAction       = "action"
	TypeStatus       = "status"
)

const (
	pingInterval = 20 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 3 * time.Second
)

// Envelope is the wire format of every message.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Hub tracks connected clients. Registration, removal and delivery all run
// on the Run goroutine; Publish never blocks.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	hello      func() any
	upgrader   websocket.Upgrader
}

// NewHub creates a Hub. hello, when non-nil, supplies the data of the
// greeting each new client receives. Call Run to start it.
func NewHub(hello func() any) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		hello:      hello,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameHost,
		},
	}
}

// sameHost accepts requests without an Origin header (non-browser clients)
// and browser requests from the page the API is served on.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Run serves the hub until ctx is cancelled, then closes every client.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.hello != nil {
				if b, err := encode(TypeHello, h.hello()); err == nil {
					h.write(c, websocket.TextMessage, b)
				}
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.write(c, websocket.TextMessage, msg)
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case <-ping.C:
			for c := range h.clients {
				h.write(c, websocket.PingMessage, nil)
			}
		}
	}
}

// write sends one frame and drops the client on failure.
func (h *Hub) write(c *websocket.Conn, kind int, b []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteMessage(kind, b); err != nil {
		delete(h.clients, c)
		_ = c.Close()
	}
}

// Handler upgrades requests to WebSocket connections and registers them.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		select {
		case h.register <- conn:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
					_ = conn.Close()
				}
			}()
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// Publish queues an envelope for every client. It reports false when the
// message was dropped because the queue was full or data did not encode.
func (h *Hub) Publish(kind string, data any) bool {
	b, err := encode(kind, data)
	if err != nil {
		log.Printf("ws: encode %s: %v", kind, err)
		return false
	}
	select {
	case h.broadcast <- b:
		return true
	default:
		return false
	}
}

// Notify publishes message as a notification envelope.
func (h *Hub) Notify(_ context.Context, message string) error {
	h.Publish(TypeNotification, map[string]string{"message": message})
	return nil
}

// Clients returns the number of connected clients. It blocks until Run
// answers, or returns 0 if ctx ends first.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

func encode(kind string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: kind, Time: time.Now(), Data: data})
}
