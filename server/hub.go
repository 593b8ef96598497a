package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"RbxFM/logger"
	"RbxFM/model"
	"RbxFM/store"

	"github.com/gorilla/websocket"
)

// MessageType identifies a message on the playlist feed.
type MessageType string

const (
	MsgTypeSync     MessageType = "sync"     // full playlist sent on connect
	MsgTypePlaylist MessageType = "playlist" // playlist changed
	MsgTypePing     MessageType = "ping"
	MsgTypePong     MessageType = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// FeedMessage is the JSON frame sent to feed clients.
type FeedMessage struct {
	Type      MessageType    `json:"type"`
	Action    store.Action   `json:"action,omitempty"`
	Index     *int           `json:"index,omitempty"`
	Playlist  model.Playlist `json:"playlist"`
	Timestamp int64          `json:"timestamp"`
}

// Client is one websocket connection on the feed.
type Client struct {
	hub   *PlaylistHub
	conn  *websocket.Conn
	send  chan []byte   // closed by the hub
	pongs chan struct{} // never closed
}

// PlaylistHub fans playlist changes out to every connected client.
type PlaylistHub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

// NewPlaylistHub creates a hub. Call Run to start it.
func NewPlaylistHub() *PlaylistHub {
	return &PlaylistHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub main loop.
func (h *PlaylistHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("feed client registered", logger.Int("clients", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.removeClient(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.removeClient(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *PlaylistHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// ClientCount returns the number of connected clients.
func (h *PlaylistHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// must hold h.mu
func (h *PlaylistHub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// PlaylistChanged implements store.Observer.
func (h *PlaylistHub) PlaylistChanged(_ context.Context, change store.Change) {
	msg := FeedMessage{
		Type:      MsgTypePlaylist,
		Action:    change.Action,
		Playlist:  nonNil(change.Playlist),
		Timestamp: change.At.UnixMilli(),
	}
	if change.Index >= 0 {
		idx := change.Index
		msg.Index = &idx
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to encode feed message", logger.ErrorField(err))
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		logger.Warn("feed broadcast queue full, dropping change", logger.String("action", string(change.Action)))
	}
}

// nonNil makes an empty playlist encode as [] rather than null.
func nonNil(playlist model.Playlist) model.Playlist {
	if playlist == nil {
		return model.Playlist{}
	}
	return playlist
}

// Serve registers conn with the hub, queues the initial snapshot and runs
// the read and write pumps until the connection closes.
func (h *PlaylistHub) Serve(conn *websocket.Conn, snapshot model.Playlist) {
	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		pongs: make(chan struct{}, 1),
	}

	if data, err := json.Marshal(FeedMessage{Type: MsgTypeSync, Playlist: nonNil(snapshot), Timestamp: time.Now().UnixMilli()}); err == nil {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// readPump only answers pings and detects disconnects; clients never
// mutate the playlist over the feed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("feed read error", logger.ErrorField(err))
			}
			return
		}

		var msg FeedMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != MsgTypePing {
			continue
		}

		select {
		case c.pongs <- struct{}{}:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.pongs:
			pong, _ := json.Marshal(map[string]interface{}{"type": MsgTypePong, "timestamp": time.Now().UnixMilli()})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
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
