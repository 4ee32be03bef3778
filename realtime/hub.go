// Package realtime pushes table change notices from the server to
// subscribed clients, so they can revalidate the queries a mutation
// touched without polling.
package realtime

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Notice is one table change event.
type Notice struct {
	Table  string      `json:"table"`
	Action string      `json:"action"` // insert, update or delete
	ID     interface{} `json:"id,omitempty"`
}

// Hub fans every broadcast notice out to all connected subscribers. It
// is an http.Handler that upgrades incoming connections.
type Hub struct {
	upgrader websocket.Upgrader

	writeMutex sync.Mutex

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// the demo server trusts any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]struct{}{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	h.mutex.Lock()
	h.clients[conn] = struct{}{}
	h.mutex.Unlock()

	// subscribers never send application messages, the read loop only
	// detects the close
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.clients, conn)
	h.mutex.Unlock()
	conn.Close()
}

// Broadcast sends notice to every connected subscriber. Dead
// connections are dropped on write failure. Broadcasts are serialized,
// gorilla connections do not support concurrent writers.
func (h *Hub) Broadcast(notice Notice) {

	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()

	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mutex.Unlock()

	for _, conn := range conns {
		err := conn.WriteJSON(notice)
		if err != nil {
			h.drop(conn)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.clients {
		conn.Close()
	}
	h.clients = map[*websocket.Conn]struct{}{}
}

// Len is the number of connected subscribers.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
