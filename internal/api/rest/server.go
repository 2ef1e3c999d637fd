package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	router  *mux.Router
	handler *Handler
}

// NewServer creates a new REST API server. records and jobsSvc may be nil
// when no database or job queue is configured; their routes answer 503.
func NewServer(port string, records RecordStore, jobsSvc JobService, checks map[string]HealthChecker) *Server {
	handler := NewHandler(records, checks)
	jobHandler := NewJobHandler(jobsSvc)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Records
	api.HandleFunc("/schemas", handler.GetSchemas).Methods("GET")
	api.HandleFunc("/records/{schema}", handler.GetRecords).Methods("GET")

	// Scrape jobs
	api.HandleFunc("/jobs", jobHandler.HandleJobRequest).Methods("POST")
	api.HandleFunc("/jobs/status", jobHandler.HandleJobStatus).Methods("GET")
	api.HandleFunc("/jobs/{jobID}", jobHandler.HandleGetJob).Methods("GET")

	return &Server{
		port:    port,
		router:  router,
		handler: handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router exposes the routes for embedding and tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
