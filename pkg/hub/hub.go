// Package hub fans simulation frames out to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/fire-stream/pkg/firesim"
)

// Message is the JSON document sent to browsers for every frame.
type Message struct {
	Type     string                     `json:"type"`
	Seq      uint64                     `json:"seq"`
	Step     int                        `json:"step"`
	Time     string                     `json:"time"`
	Features int                        `json:"features"`
	AreaKm2  float64                    `json:"area_km2"`
	Payload  *geojson.FeatureCollection `json:"payload"`
}

type frameMessage struct {
	seq  uint64
	data []byte
}

// Hub maintains the set of active clients and broadcasts frames. Only the
// Run goroutine touches the latest frame.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan frameMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	started   chan struct{}
	done      chan struct{}
	startOnce sync.Once

	upgrader websocket.Upgrader
}

func New() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frameMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		started:    make(chan struct{}),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run serves the hub until ctx is cancelled. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	h.startOnce.Do(func() { close(h.started) })
	defer close(h.done)

	var latest frameMessage
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			log.Printf("[hub] Stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[hub] Client connected: %s", client.Conn.RemoteAddr())
			if latest.data != nil {
				client.Send <- latest.data
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("[hub] Client disconnected: %s", client.Conn.RemoteAddr())
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			if latest.data != nil && msg.seq <= latest.seq {
				continue
			}
			latest = msg
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- msg.data:
				default:
					log.Printf("[hub] Client %s is too slow, dropping it", client.Conn.RemoteAddr())
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// SetData replaces what every client displays with frame. Frames older than
// the latest one seen are dropped.
func (h *Hub) SetData(frame *firesim.Frame) error {
	select {
	case <-h.started:
	default:
		return firesim.ErrSinkUnavailable
	}

	data, err := json.Marshal(Message{
		Type:     "frame",
		Seq:      frame.Seq,
		Step:     frame.Step,
		Time:     frame.Time,
		Features: frame.Features,
		AreaKm2:  frame.AreaKm2,
		Payload:  frame.Collection,
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- frameMessage{seq: frame.Seq, data: data}:
		return nil
	case <-h.done:
		return firesim.ErrSinkUnavailable
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection as a client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[hub] Upgrade failed: %v", err)
		return
	}
	client := &Client{Hub: h, Conn: conn, Send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}
