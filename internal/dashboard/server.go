// Package dashboard provides a real-time WebSocket feed of sync activity.
//
// Connected clients receive a snapshot on connect, then a message whenever
// the remote status changes or a full sync finishes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSnapshot is sent to each client when it connects
	MessageTypeSnapshot MessageType = "snapshot"

	// MessageTypeStatusChanged indicates the remote status changed
	MessageTypeStatusChanged MessageType = "status_changed"

	// MessageTypeSyncComplete indicates a full sync completed
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeSyncFailed indicates a full sync ran and failed, fully or
	// partially
	MessageTypeSyncFailed MessageType = "sync_failed"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// sendQueue is how many messages may wait for a slow client before it is
// dropped.
const sendQueue = 32

const writeTimeout = 5 * time.Second

// client is one dashboard connection. Messages reach it through send, which
// the connection's handler drains; closing send ends the connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server serves the dashboard feed over WebSocket.
type Server struct {
	addr     string
	logger   *log.Logger
	snapshot func() Message

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
	clients  map[*client]struct{}
	stopped  bool

	handlers sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on; 0 picks a free port
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns the loopback address on port 8080.
func DefaultConfig() *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   8080,
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard server. Nothing listens until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	host := config.Host
	if host == "" {
		host = "127.0.0.1"
	}

	return &Server{
		addr:    net.JoinHostPort(host, fmt.Sprint(config.Port)),
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// SetSnapshot sets the function that builds the message sent to each new
// client. It must be called before Start.
func (s *Server) SetSnapshot(fn func() Message) {
	s.snapshot = fn
}

// Start listens and serves /ws and /health in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.listener = ln
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	s.logger.Printf("Dashboard listening on %s", ln.Addr())
	return nil
}

// Stop disconnects every client and shuts the server down. It is safe to
// call without Start.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	for c := range s.clients {
		s.dropLocked(c)
	}
	srv := s.http
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	// Upgraded connections are not tracked by Shutdown.
	s.handlers.Wait()
	return nil
}

// Broadcast queues msg for every connected client. A client whose queue is
// full is disconnected rather than allowed to hold the others back.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Println("WARNING: dashboard client too slow, disconnecting")
			s.dropLocked(c)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueue)}

	// Queued before registration, so it is always the first message.
	if s.snapshot != nil {
		msg := s.snapshot()
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Printf("Failed to marshal snapshot: %v", err)
			_ = conn.Close(websocket.StatusInternalError, "snapshot failed")
			return
		}
		c.send <- data
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.clients[c] = struct{}{}
	total := len(s.clients)
	s.handlers.Add(1)
	s.mu.Unlock()
	defer s.handlers.Done()

	s.logger.Printf("Client connected (total: %d)", total)
	s.serveClient(conn.CloseRead(context.Background()), c)
}

// serveClient writes queued messages until the client goes away or is
// dropped. Client messages are discarded by CloseRead.
func (s *Server) serveClient(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			s.drop(c)
			_ = c.conn.CloseNow()
			return

		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Printf("Failed to send to client: %v", err)
				s.drop(c)
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c)
}

// dropLocked unregisters c and closes its queue. s.mu must be held.
func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.logger.Printf("Client disconnected (total: %d)", len(s.clients))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// GetAddr returns the listening address, or the configured one before Start.
func (s *Server) GetAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
