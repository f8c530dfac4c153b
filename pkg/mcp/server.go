// Package mcp hosts the MCP server and its two transports: stdio for
// client-spawned processes and streamable HTTP for long-running deployments.
package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// shutdownGrace is how long in-flight HTTP requests get to finish once a
// stop signal arrives.
const shutdownGrace = 10 * time.Second

// Server wraps the mcp-go MCPServer with the transports and logging used
// here. Tool handlers are registered before serving; both Serve methods
// block until the transport ends.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
// This is the transport MCP clients spawn the binary with.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving over stdio")
	return server.ServeStdio(s.mcp)
}

// ServeHTTP runs the streamable HTTP transport on addr until ctx is
// canceled, then drains in-flight requests before returning. The MCP
// endpoint is mounted at /mcp; sessions are stateless so any replica can
// answer any request.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	))

	httpServer := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("serving over http", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
