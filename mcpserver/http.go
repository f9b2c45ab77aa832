package mcpserver

import (
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// Handler returns an http.Handler serving the streamable HTTP transport on
// EndpointPath and a health check on /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.maxBodyMiddleware(mux)
}

// RegisterRoutes mounts the MCP routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	streamable := server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(EndpointPath))
	mux.Handle(EndpointPath, streamable)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// handleHealth reports liveness and the number of tools currently offered.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  len(s.dispatcher.Available(r.Context())),
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
