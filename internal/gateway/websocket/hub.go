package websocket

import (
	"encoding/json"
	"sync"

	"strider/pkg/logger"
)

// RunHandler launches a browsing run for a task received over a
// WebSocket connection. It returns the new run's ID and a channel of
// serialized event messages for the requesting client.
type RunHandler func(task string) (string, <-chan []byte, error)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Run to clients mapping for targeted broadcasts.
	runs map[string]map[*Client]bool

	// Register requests from clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Broadcast messages to runs.
	broadcast chan *BroadcastMessage

	// Mutex for thread-safe access.
	mu sync.RWMutex

	// Run launch handler.
	runHandler RunHandler
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		runs:       make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// SetRunHandler sets the callback for run launch messages.
func (h *Hub) SetRunHandler(handler RunHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runHandler = handler
}

// HandleRun launches a run on behalf of a client.
func (h *Hub) HandleRun(task string) (string, <-chan []byte, error) {
	h.mu.RLock()
	handler := h.runHandler
	h.mu.RUnlock()

	if handler == nil {
		return "", nil, nil
	}

	return handler(task)
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				// Remove from all run subscriptions
				for run := range client.runs {
					if clients, ok := h.runs[run]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.runs, run)
						}
					}
				}
			}
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.Run == "" {
				// Broadcast to all clients
				for client := range h.clients {
					select {
					case client.send <- msg.Data:
					default:
						// Client buffer full, skip
					}
				}
			} else {
				// Broadcast to run subscribers
				if clients, ok := h.runs[msg.Run]; ok {
					for client := range clients {
						select {
						case client.send <- msg.Data:
						default:
							// Client buffer full, skip
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a run's subscriber list.
func (h *Hub) Subscribe(client *Client, run string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.runs[run] = true
	if h.runs[run] == nil {
		h.runs[run] = make(map[*Client]bool)
	}
	h.runs[run][client] = true

	logger.Debug().
		Str("client_id", client.id).
		Str("run", run).
		Msg("Client subscribed to run")
}

// Unsubscribe removes a client from a run's subscriber list.
func (h *Hub) Unsubscribe(client *Client, run string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.runs, run)
	if clients, ok := h.runs[run]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.runs, run)
		}
	}

	logger.Debug().
		Str("client_id", client.id).
		Str("run", run).
		Msg("Client unsubscribed from run")
}

// Broadcast sends a message to all clients subscribed to a run.
func (h *Hub) Broadcast(run string, data []byte) {
	h.broadcast <- &BroadcastMessage{Run: run, Data: data}
}

// BroadcastAll sends a message to all connected clients.
func (h *Hub) BroadcastAll(data []byte) {
	h.broadcast <- &BroadcastMessage{Run: "", Data: data}
}

// BroadcastTyped sends a typed message to all connected clients.
func (h *Hub) BroadcastTyped(messageType string, payload any) error {
	msg := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{
		Type: messageType,
		Data: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal broadcast message")
		return err
	}

	h.broadcast <- &BroadcastMessage{Run: "", Data: data}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
