package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/gorilla/websocket"
)

// Client is one WebSocket connection carrying a user's live message
// events. Each client holds its own broker subscription; the hub only
// tracks membership for registration and shutdown.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	sub    *live.Subscription
}

type Hub struct {
	Clients    map[string]map[*Client]bool // userID -> connections
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	broker   *live.Broker
	upgrader websocket.Upgrader
}

func NewHub(broker *live.Broker) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broker:     broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			h.mu.Unlock()
			log.Printf("[WS] client connected: user %s", client.UserID)
		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.Clients[client.UserID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.Clients, client.UserID)
					}
					client.sub.Cancel()
				}
			}
			h.mu.Unlock()
			log.Printf("[WS] client disconnected: user %s", client.UserID)
		}
	}
}

// ConnectionCount reports how many live connections a user has.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID])
}

// ServeWS upgrades the request and streams the user's message events
// until the connection drops. The caller has already authenticated the
// user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed for user %s: %v", userID, err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		sub:    h.broker.Subscribe(userID),
	}
	h.Register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump forwards broker events to the socket as JSON. It exits when
// the subscription is cancelled, which closes the event channel.
func (c *Client) writePump() {
	defer c.Conn.Close()

	for ev := range c.sub.C {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[WS] marshal event for user %s: %v", c.UserID, err)
			continue
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains the socket to detect disconnects. Clients do not send
// messages over the socket; all writes go through the HTTP API.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error for user %s: %v", c.UserID, err)
			}
			return
		}
	}
}
