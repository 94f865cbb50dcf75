package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/elijahnyp/smart_office/state"
	. "github.com/elijahnyp/smart_office/util"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages. It is
// attached to every room and pushes a room_status message per change.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	mu         sync.Mutex
}

// SystemStatus represents the overall office status
type SystemStatus struct {
	Rooms         []state.RoomStats `json:"rooms"`
	Timestamp     int64             `json:"timestamp"`
	TotalRooms    int               `json:"total_rooms"`
	OccupiedRooms int               `json:"occupied_rooms"`
	BookedRooms   int               `json:"booked_rooms"`
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			Logger.Debug().Msg("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount is the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		Logger.Debug().Msgf("WebSocket broadcast queue full, dropping %s", messageType)
	}
}

// Update implements state.Observer.
func (h *WSHub) Update(room *state.Room) error {
	h.BroadcastUpdate("room_status", room.Stats())
	return nil
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			return
		}
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeHTTP lets the hub be mounted directly on a mux.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWebSocket(w, r)
}

// ServeWebSocket handles websocket requests from the peer
func (h *WSHub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close() //nolint:errcheck // hub already stopped
		return
	}

	go client.writePump()
	go client.readPump()
}

// StatusHandlers serves the read-only room views.
type StatusHandlers struct {
	registry *state.Registry
}

func NewStatusHandlers(registry *state.Registry) *StatusHandlers {
	return &StatusHandlers{registry: registry}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// APISystemStatus returns every room as JSON
func (s *StatusHandlers) APISystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	rooms := s.registry.Stats()
	status := SystemStatus{
		Rooms:      rooms,
		Timestamp:  time.Now().Unix(),
		TotalRooms: len(rooms),
	}
	for _, room := range rooms {
		if room.Occupied {
			status.OccupiedRooms++
		}
		if room.Booked {
			status.BookedRooms++
		}
	}
	writeJSON(w, status)
}

// APIRoomDetail returns one room, selected by the id query parameter
func (s *StatusHandlers) APIRoomDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Room id required", http.StatusBadRequest)
		return
	}
	room, err := s.registry.Room(id)
	if errors.Is(err, state.ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, room.Stats())
}

// StatusOverview renders the usage statistics as an HTML table
func (s *StatusHandlers) StatusOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusBadRequest)
		if _, err := io.WriteString(w, "Bad Request Method\n"); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
		return
	}
	w.Header().Add("Content-Type", "text/html")
	writeString := func(s string) {
		if _, err := io.WriteString(w, s); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
	}
	writeString("<html><body><table>")
	writeString("<tr><th>Room</th><th>Occupants</th><th>Capacity</th><th>Booking</th><th>Total Bookings</th><th>Occupied Time (ms)</th></tr>")
	for _, room := range s.registry.Stats() {
		booking := "-"
		if room.Booking != nil {
			booking = fmt.Sprintf("%s for %d min", room.Booking.Start, room.Booking.DurationMinutes)
		}
		writeString("<tr>")
		writeString(fmt.Sprintf("<td><a href=\"/api/room?id=%d\">Room %d</a></td>", room.ID, room.ID))
		writeString(fmt.Sprintf("<td>%d</td>", room.Occupants))
		writeString(fmt.Sprintf("<td>%d</td>", room.Capacity))
		writeString(fmt.Sprintf("<td>%s</td>", html.EscapeString(booking)))
		writeString(fmt.Sprintf("<td>%d</td>", room.TotalBookings))
		writeString(fmt.Sprintf("<td>%d</td>", room.TotalOccupiedMs))
		writeString("</tr>")
	}
	writeString("</table></body></html>")
}

// mountStatusRoutes registers the status pages and the websocket feed.
func mountStatusRoutes(monitor *MonitorServer, handlers *StatusHandlers, hub *WSHub) {
	monitor.AddHandler("/api/status", handlers.APISystemStatus)
	monitor.AddHandler("/api/room", handlers.APIRoomDetail)
	monitor.AddHandler("/room_status", handlers.StatusOverview)
	monitor.AddRawHandler("/ws", hub)
}
