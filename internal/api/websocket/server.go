package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fortuna/cricstats/internal/records"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams scraped records to websocket subscribers
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	logger *log.Logger
}

// NewServer creates a new WebSocket server
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[websocket] ", log.LstdFlags)
	}
	return &Server{
		hub:    NewHub(),
		logger: logger,
	}
}

// Handler returns the websocket routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/records", s.handleRecords)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start starts the hub and listens on port
func (s *Server) Start(port string) error {
	s.port = port

	go s.hub.Run()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Printf("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

// handleRecords subscribes the caller to the record feed
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// Hub exposes the broadcast hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Shutdown disconnects clients and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// RecordEvent is the message sent for each scraped record
type RecordEvent struct {
	Schema    string            `json:"schema"`
	Record    map[string]string `json:"record"`
	Timestamp time.Time         `json:"timestamp"`
}

// BroadcastSink forwards every written record to the hub's subscribers
type BroadcastSink struct {
	hub *Hub
}

// NewBroadcastSink creates a sink feeding hub
func NewBroadcastSink(hub *Hub) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

// Write encodes r as a RecordEvent. A full queue drops the event; live
// subscribers are best effort and never fail a scrape.
func (b *BroadcastSink) Write(_ context.Context, r records.Record) error {
	data, err := json.Marshal(RecordEvent{
		Schema:    r.Schema().Name,
		Record:    records.Map(r),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", r.Schema().Name, err)
	}
	b.hub.Broadcast(data)
	return nil
}

// Close is a no-op; the server owns the hub
func (b *BroadcastSink) Close() error {
	return nil
}
