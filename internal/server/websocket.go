package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"sketchbook/internal/game"
)

const wsWriteTimeout = 5 * time.Second

// Hub fans notices out to websocket subscribers grouped by channel. A
// connection may belong to several channels; writeMu keeps writes to it
// sequential.
type Hub struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	groups  map[string]map[*websocket.Conn]struct{}
}

var _ game.Broadcaster = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[channel]
	if group == nil {
		group = make(map[*websocket.Conn]struct{})
		h.groups[channel] = group
	}
	group[conn] = struct{}{}
}

func (h *Hub) Remove(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[channel]
	if group == nil {
		return
	}
	delete(group, conn)
	if len(group) == 0 {
		delete(h.groups, channel)
	}
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[channel])
}

// Publish writes the notice to every subscriber of channel. Connections that
// fail to accept it are dropped.
func (h *Hub) Publish(channel string, notice game.Notice) {
	h.mu.Lock()
	group := h.groups[channel]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn := range group {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(channel, conn)
			_ = conn.Close()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebsocket subscribes the connection to the room channel and the game
// channel of the room.
func (s *Server) handleWebsocket(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	if _, err := s.manager.Status(c.Request.Context(), uri.ID); err != nil {
		writeError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	channels := []string{game.RoomChannel(uri.ID), game.GameChannel(uri.ID)}
	for _, channel := range channels {
		s.hub.Add(channel, conn)
	}
	log.Debug().Str("room_id", uri.ID).Str("remote", c.Request.RemoteAddr).Msg("ws_connected")
	go s.readWS(uri.ID, conn, channels)
}

func (s *Server) readWS(roomID string, conn *websocket.Conn, channels []string) {
	defer func() {
		for _, channel := range channels {
			s.hub.Remove(channel, conn)
		}
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().Str("room_id", roomID).Err(err).Msg("ws_disconnected")
			return
		}
	}
}
