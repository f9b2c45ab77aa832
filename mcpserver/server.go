// Package mcpserver exposes a tool dispatcher over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/sjson"

	"github.com/petal-labs/opensearch-mcp/tool"
)

// Config configures a Server instance.
type Config struct {
	Name       string
	Version    string
	Dispatcher *tool.Dispatcher
	// MaxBody caps HTTP request bodies. Defaults to 4 MB.
	MaxBody int64
	Logger  *slog.Logger
}

// Server bridges MCP requests to a tool.Dispatcher. It adds no behavior of
// its own: discovery and invocation semantics come from the dispatcher.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *tool.Dispatcher
	maxBody    int64
	logger     *slog.Logger
}

// New creates a server and registers every catalog tool.
func New(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("mcpserver: dispatcher is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	name := cfg.Name
	if name == "" {
		name = "opensearch-mcp"
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		maxBody:    maxBody,
		logger:     logger,
	}
	s.mcp = server.NewMCPServer(name, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithToolFilter(s.filterTools),
		server.WithRecovery(),
	)

	tools, err := s.serverTools()
	if err != nil {
		return nil, err
	}
	s.mcp.AddTools(tools...)
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// HandleMessage processes one JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, message)
}

// ServeStdio serves newline-delimited JSON-RPC on in/out until ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpserver: stdio: %w", err)
	}
	return nil
}

func (s *Server) serverTools() ([]server.ServerTool, error) {
	catalog := s.dispatcher.Catalog()
	tools := make([]server.ServerTool, 0, catalog.Len())
	for desc := range catalog.List(nil) {
		raw, err := tool.RawInputSchema(desc.Params)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: schema for %s: %w", desc.Name, err)
		}
		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(desc.Name, desc.Description, raw),
			Handler: s.callHandler(desc.Name),
		})
	}
	return tools, nil
}

// filterTools narrows tools/list to what the dispatcher currently allows.
func (s *Server) filterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	allowed := make(map[string]struct{})
	for _, schema := range s.dispatcher.ListAvailable(ctx) {
		allowed[schema.Name] = struct{}{}
	}
	out := make([]mcp.Tool, 0, len(allowed))
	for _, t := range tools {
		if _, ok := allowed[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) callHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inv := s.dispatcher.Dispatch(ctx, name, req.GetArguments())
		if inv.OK() {
			return mcp.NewToolResultText(inv.Result.Text), nil
		}
		return mcp.NewToolResultError(errorEnvelope(inv)), nil
	}
}

// errorEnvelope renders {"error":{"kind":...,"message":...}}.
func errorEnvelope(inv tool.Invocation) string {
	kind := string(tool.KindHandlerFault)
	message := "invocation did not complete"
	if inv.Err != nil {
		kind = string(inv.Err.Kind)
		message = inv.Err.Message
	}
	out, err := sjson.Set("", "error.kind", kind)
	if err == nil {
		out, err = sjson.Set(out, "error.message", message)
	}
	if err != nil {
		return fmt.Sprintf("%s: %s", kind, message)
	}
	return out
}
