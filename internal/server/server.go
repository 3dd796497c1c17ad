// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/nimchat/internal/nim"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the gateway server.
	DefaultPort = 3001

	// LivenessBanner is the plain-text response of GET /.
	LivenessBanner = "NIM server is running"

	// MaxRequestBodySize is the maximum size for request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 1000

	// Version is the server version.
	Version = "0.1.0"
)

// validRoles defines the set of acceptable message roles.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
}

// validateMessages checks that all message roles are acceptable.
func validateMessages(messages []nim.ChatMessage) error {
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be user or assistant", msg.Role, i)
		}
	}
	return nil
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the gateway HTTP server. It forwards chat requests to the NIM
// upstream and classifies failures into the uniform {"error": string} shape.
type Server struct {
	port   int
	router *http.ServeMux
	server *http.Server

	upstream *nim.Client
}

// NewServer creates a new Server with the specified port and upstream client.
// If port is 0, the default port (3001) is used.
func NewServer(port int, upstream *nim.Client) *Server {
	if port == 0 {
		port = DefaultPort
	}

	s := &Server{
		port:     port,
		router:   http.NewServeMux(),
		upstream: upstream,
	}

	s.setupRoutes()
	return s
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the fully wrapped HTTP handler. Used by Start and by tests
// that drive the server through httptest.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
		CORSMiddleware(DefaultCORSConfig()),
	)(s.router)
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /api/chat", s.handleChat)
}

// handleRoot handles GET / with a plain-text liveness banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, LivenessBanner)
}

// handleHealth handles GET /health. Always healthy; no upstream check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Messages []nim.ChatMessage `json:"messages"`
}

// handleChat handles POST /api/chat: forwards the message list upstream and
// relays the completion object unmodified. Every caught failure produces
// exactly one classified error response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("BAD_REQUEST | client_ip=%s error=%v", GetClientIP(r), err)
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "Request must contain at least one message")
		return
	}
	if len(req.Messages) > MaxMessageCount {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many messages: maximum is %d", MaxMessageCount))
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		log.Printf("BAD_REQUEST | client_ip=%s error=%v", GetClientIP(r), err)
		s.writeError(w, http.StatusBadRequest, "Invalid message format. Messages must have valid roles (user, assistant)")
		return
	}

	// Log request shape only; message content stays out of the logs.
	log.Printf("CHAT_REQUEST | client_ip=%s messages=%d", GetClientIP(r), len(req.Messages))

	startTime := time.Now()
	completion, err := s.upstream.Chat(r.Context(), req.Messages)
	if err != nil {
		status, message := Classify(err)
		log.Printf("CHAT_FAILED | status=%d duration=%v error=%v", status, time.Since(startTime), err)
		s.writeError(w, status, message)
		return
	}

	log.Printf("CHAT_OK | duration=%v tokens=%d", time.Since(startTime), completion.Usage.TotalTokens)
	s.writeJSON(w, http.StatusOK, completion)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server on loopback.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s upstream_key=%s", addr, Version, s.upstream.APIKeyMasked())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the uniform {"error": string} response body.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
