package rpc

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// Client represents one authenticated WebSocket connection.
type Client struct {
	// ConnectionID is the opaque identifier for this connection. Group
	// membership is keyed by it.
	ConnectionID string

	// UserID is the authenticated user.
	UserID int32

	// Username is the authenticated user's name, informational only.
	Username string

	// server is the WebSocket server that created this client.
	server *Server

	// conn is the WebSocket connection.
	conn *websocket.Conn

	// send is the channel of outbound messages.
	send chan []byte

	// groups is the set of broadcast groups this connection is in. Guarded
	// by the hub's mutex.
	groups map[string]bool

	logger *utils.Logger

	// mutex protects closed and lastPong.
	mutex sync.RWMutex

	// closed is set once the send channel must no longer be written.
	closed bool

	// lastPong is the time of the last pong received.
	lastPong time.Time
}

func newClient(connectionID string, userID int32, username string, server *Server, conn *websocket.Conn, logger *utils.Logger) *Client {
	return &Client{
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
		server:       server,
		conn:         conn,
		send:         make(chan []byte, server.cfg.SendBufferSize),
		groups:       make(map[string]bool),
		logger:       logger,
		lastPong:     time.Now(),
	}
}

// trySend queues a message without blocking. A full buffer or closed
// channel reports false so the hub can drop the client.
func (c *Client) trySend(message []byte) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// markClosed stops further sends. Called by the server once the client is
// unregistered; the write pump drains what is already queued.
func (c *Client) markClosed() {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()
}

// close tears the connection down. Safe to call from any goroutine; the
// read pump notices the closed socket and runs the ordinary teardown path.
func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// readPump reads requests off the socket until it closes, then triggers the
// server-side teardown.
func (c *Client) readPump() {
	defer func() {
		c.server.teardown(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.server.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.mutex.Lock()
		c.lastPong = time.Now()
		c.mutex.Unlock()
		c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected close", "connectionId", c.ConnectionID, "userId", c.UserID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		message = bytes.TrimSpace(message)
		c.handleMessage(message)
	}
}

// writePump writes queued messages and periodic pings to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Write failed", "connectionId", c.ConnectionID)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses one JSON-RPC request and routes it.
func (c *Client) handleMessage(message []byte) {
	var request Request
	if err := json.Unmarshal(message, &request); err != nil {
		c.logger.Debug("Failed to parse message", "connectionId", c.ConnectionID)
		c.sendResponse(NewErrorResponse(nil, ErrParseError, ErrParseError.String(), nil))
		return
	}

	if request.JSONRPC != "2.0" {
		c.sendResponse(NewErrorResponse(request.ID, ErrInvalidRequest, "Invalid JSON-RPC version", nil))
		return
	}
	if request.Method == "" {
		c.sendResponse(NewErrorResponse(request.ID, ErrInvalidRequest, "Missing method", nil))
		return
	}

	response := c.server.router.Route(c, &request)
	if response != nil {
		c.sendResponse(response)
	}
}

func (c *Client) sendResponse(response *Response) {
	message, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("Failed to marshal response", err, "connectionId", c.ConnectionID)
		return
	}
	c.trySend(message)
}
