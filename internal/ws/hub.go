package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-resale-dashboard/internal/repository"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Hub struct {
	Clients    map[Conn]bool
	Register   chan Conn
	Unregister chan Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[Conn]bool),
		Register:   make(chan Conn),
		Unregister: make(chan Conn),
		Broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			count := len(h.Clients)
			h.mutex.Unlock()
			log.Debug().Int("clients", count).Msg("ws client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Join registers conn. It returns false once the hub has stopped, in which
// case the caller should drop the connection.
func (h *Hub) Join(conn Conn) bool {
	select {
	case h.Register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters conn. It never blocks after the hub has stopped.
func (h *Hub) Leave(conn Conn) {
	select {
	case h.Unregister <- conn:
	case <-h.done:
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

// Publish encodes payload as JSON and queues it for every client. When the
// broadcast buffer is full the message is dropped; clients catch up on the
// next snapshot.
func (h *Hub) Publish(payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("ws: encode broadcast")
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		log.Warn().Msg("ws: broadcast buffer full, message dropped")
	}
}

// RelaySnapshot tells clients which collections changed so they refetch the
// dashboard. Register it with Feed.OnChange.
func (h *Hub) RelaySnapshot(snap repository.Snapshot) {
	counts := make(map[repository.Collection]int, len(snap.Collections))
	for _, c := range snap.Collections {
		switch c {
		case repository.CollectionProducts:
			counts[c] = len(snap.Products)
		case repository.CollectionSales:
			counts[c] = len(snap.Sales)
		case repository.CollectionOwners:
			counts[c] = len(snap.Owners)
		}
	}
	h.Publish(map[string]interface{}{
		"type":        "snapshot",
		"collections": snap.Collections,
		"version":     snap.Version,
		"counts":      counts,
	})
}
