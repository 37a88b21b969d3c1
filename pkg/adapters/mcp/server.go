// Package mcp exposes running sessions to MCP clients: tools to read the
// document and drive the report, and a resource listing the sessions.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionsURI is the resource listing the registered sessions.
const SessionsURI = "vitrine://sessions"

// Registry resolves session ids. session.Manager implements it.
type Registry interface {
	Get(id string) (ports.Controller, error)
	Sessions() []string
}

// Server wraps a Registry and exposes it as an MCP server.
type Server struct {
	registry  Registry
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(registry Registry, version string) *Server {
	s := &Server{
		registry:  registry,
		mcpServer: server.NewMCPServer("vitrine-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session, see "+SessionsURI))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get the current document of a session: run state, connection, dialog and elements."),
		sessionArg(),
	), s.handleGetDocument)

	s.mcpServer.AddTool(mcp.NewTool("rerun_report",
		mcp.WithDescription("Ask the server to run the report script again."),
		sessionArg(),
		mcp.WithBoolean("always", mcp.Description("Also switch run-on-save on")),
	), s.control(func(ctx context.Context, c ports.Controller, req mcp.CallToolRequest) error {
		return c.Rerun(ctx, req.GetBool("always", false))
	}, "rerun requested"))

	s.mcpServer.AddTool(mcp.NewTool("stop_report",
		mcp.WithDescription("Ask the server to stop the running report."),
		sessionArg(),
	), s.control(func(ctx context.Context, c ports.Controller, _ mcp.CallToolRequest) error {
		return c.Stop(ctx)
	}, "stop requested"))

	s.mcpServer.AddTool(mcp.NewTool("clear_cache",
		mcp.WithDescription("Ask the server to clear its computation cache."),
		sessionArg(),
	), s.control(func(ctx context.Context, c ports.Controller, _ mcp.CallToolRequest) error {
		return c.ClearCache(ctx)
	}, "cache cleared"))
}

func (s *Server) lookup(req mcp.CallToolRequest) (ports.Controller, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	c, err := s.registry.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return c, nil
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, res := s.lookup(req)
	if res != nil {
		return res, nil
	}
	view, err := c.View(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("view failed: %v", err)), nil
	}
	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode view: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// control wraps a session request as a tool handler. Refusals from the
// session (gate closed, sharing off) come back as tool errors, not protocol errors.
func (s *Server) control(fn func(context.Context, ports.Controller, mcp.CallToolRequest) error, ok string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, res := s.lookup(req)
		if res != nil {
			return res, nil
		}
		if err := fn(ctx, c, req); err != nil {
			if errors.Is(err, domain.ErrNotConnected) {
				slog.Warn("MCP: Request dropped", "session_id", c.ID(), "err", err)
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(ok), nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Registered Sessions",
		mcp.WithMIMEType("application/json"),
	), s.handleSessions)
}

func (s *Server) handleSessions(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(map[string][]string{"sessions": s.registry.Sessions()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SessionsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
