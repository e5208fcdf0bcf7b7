// Package http is the driving HTTP adapter: the REST API over the
// ingestion, query, document, collection and session services.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/core/services"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	uploadDir  string

	// Services
	ingestService     driving.IngestService
	queryService      driving.QueryService
	documentService   driving.DocumentService
	collectionService driving.CollectionService
	sessionService    driving.SessionService

	// Infrastructure, probed by readiness and model-status endpoints
	gateway *services.EmbeddingGateway
	llm     driven.LLMService
	index   Pinger
	db      Pinger // optional
	redis   Pinger // optional
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// UploadDir receives files posted as multipart ingest requests
	UploadDir string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      8080,
		Version:   "dev",
		UploadDir: "data/uploads",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	ingestService driving.IngestService,
	queryService driving.QueryService,
	documentService driving.DocumentService,
	collectionService driving.CollectionService,
	sessionService driving.SessionService,
	gateway *services.EmbeddingGateway,
	llm driven.LLMService,
	index Pinger,
	db Pinger, // can be nil
	redis Pinger, // can be nil
) *Server {
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = DefaultConfig().UploadDir
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		uploadDir:         uploadDir,
		ingestService:     ingestService,
		queryService:      queryService,
		documentService:   documentService,
		collectionService: collectionService,
		sessionService:    sessionService,
		gateway:           gateway,
		llm:               llm,
		index:             index,
		db:                db,
		redis:             redis,
	}

	logging := NewLoggingMiddleware()
	recovery := NewRecoveryMiddleware()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     recovery.Handler(logging.Handler(s.router)),
		ReadTimeout: 30 * time.Second,
		// Streaming responses may outlive a conventional write timeout;
		// generation has its own per-call deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Ingestion
	s.router.HandleFunc("POST /api/v1/ingest", s.handleIngest)
	s.router.HandleFunc("POST /api/v1/ingest/batch", s.handleIngestBatch)
	s.router.HandleFunc("GET /api/v1/ingest/extensions", s.handleSupportedExtensions)

	// Query
	s.router.HandleFunc("POST /api/v1/query", s.handleQuery)
	s.router.HandleFunc("POST /api/v1/query/stream", s.handleQueryStream)
	s.router.HandleFunc("POST /api/v1/search", s.handleSearch)

	// Documents
	s.router.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)
	s.router.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)
	s.router.HandleFunc("POST /api/v1/documents/{id}/reindex", s.handleReindexDocument)
	s.router.HandleFunc("POST /api/v1/documents/reindex", s.handleReindexAll)

	// Collections
	s.router.HandleFunc("GET /api/v1/collections", s.handleListCollections)
	s.router.HandleFunc("POST /api/v1/collections", s.handleAssignCollections)
	s.router.HandleFunc("GET /api/v1/collections/{name}/documents", s.handleCollectionDocuments)
	s.router.HandleFunc("DELETE /api/v1/collections/{name}", s.handleRemoveCollection)

	// Sessions
	s.router.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("PATCH /api/v1/sessions/{id}", s.handleRenameSession)
	s.router.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("GET /api/v1/sessions/{id}/messages", s.handleListMessages)

	// Observability
	s.router.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.router.HandleFunc("GET /api/v1/models/status", s.handleModelStatus)
}

// Handler returns the server's root handler, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
