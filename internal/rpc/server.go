package rpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nanaya/osu-server-spectator/internal/auth"
	"github.com/nanaya/osu-server-spectator/internal/config"
	"github.com/nanaya/osu-server-spectator/internal/db/redis/managers"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// SessionCleaner tears down a user's server-side state after their
// connection closes. Implemented by the multiplayer coordinator.
type SessionCleaner interface {
	HandleDisconnect(ctx context.Context, userID int32, connectionID string)
}

// teardownTimeout bounds the database work done while cleaning up a
// closed connection.
const teardownTimeout = 10 * time.Second

type wsConfig struct {
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	SendBufferSize int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Game clients are not browsers; origin checks buy nothing here.
		return true
	},
}

// Server handles WebSocket connections and RPC requests.
type Server struct {
	hub          *Hub
	router       *Router
	authProvider auth.Provider
	presence     *managers.PresenceManager
	cleaner      SessionCleaner
	cfg          wsConfig
	logger       *utils.Logger

	mutex   sync.Mutex
	clients map[*Client]bool
}

// NewServer creates a new WebSocket server. The hub is injected rather than
// owned so it can be handed to the coordinator before the server exists.
func NewServer(
	cfg *config.Config,
	hub *Hub,
	router *Router,
	authProvider auth.Provider,
	presence *managers.PresenceManager,
	cleaner SessionCleaner,
	logger *utils.Logger,
) *Server {
	return &Server{
		hub:          hub,
		router:       router,
		authProvider: authProvider,
		presence:     presence,
		cleaner:      cleaner,
		cfg: wsConfig{
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			SendBufferSize: cfg.WebSocket.SendBufferSize,
		},
		logger:  logger.Named("rpc_server"),
		clients: make(map[*Client]bool),
	}
}

// HandleWebSocket authenticates and upgrades an HTTP connection, then runs
// the connection's read and write pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := s.authProvider.ValidateToken(token)
	if err != nil {
		s.logger.Warn("Rejected connection with invalid token", "error", err.Error())
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	connectionID, err := utils.GenerateID("conn")
	if err != nil {
		s.logger.Error("Failed to generate connection id", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", err)
		return
	}

	client := newClient(connectionID, claims.UserID, claims.Username, s, conn, s.logger.Named("client"))

	s.mutex.Lock()
	s.clients[client] = true
	s.mutex.Unlock()
	s.hub.register(client)

	if err := s.presence.SetOnline(r.Context(), client.UserID); err != nil {
		s.logger.Warn("Failed to record presence", "userId", client.UserID)
	}

	go client.writePump()
	go client.readPump()

	s.logger.Info("Connection established", "connectionId", connectionID, "userId", claims.UserID)
}

// teardown cleans up after a closed connection: hub and group membership,
// the user's multiplayer state, and presence. Runs exactly once per client,
// from the read pump.
func (s *Server) teardown(client *Client) {
	s.mutex.Lock()
	if !s.clients[client] {
		s.mutex.Unlock()
		return
	}
	delete(s.clients, client)
	s.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	// Multiplayer cleanup first, while the hub still knows the connection:
	// the leave broadcasts must not reach the departing client's groups
	// out of order.
	s.cleaner.HandleDisconnect(ctx, client.UserID, client.ConnectionID)

	s.hub.unregister(client)
	client.markClosed()
	close(client.send)

	if err := s.presence.SetOffline(ctx, client.UserID); err != nil {
		s.logger.Warn("Failed to clear presence", "userId", client.UserID)
	}

	s.logger.Info("Connection closed", "connectionId", client.ConnectionID, "userId", client.UserID)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.clients)
}

// Shutdown closes every client connection. Each closing socket runs the
// ordinary teardown path, so rooms empty out and sessions are destroyed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down RPC server", "clients", s.ClientCount())

	s.mutex.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mutex.Unlock()

	for _, client := range clients {
		client.close()
	}

	// Wait for the read pumps to finish their teardowns.
	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.ClientCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
}
