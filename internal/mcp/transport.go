package mcp

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. Conversations are keyed by
	// conversation_id, not by MCP session, so either mode works.
	Stateless bool
}

// NewHTTPHandler creates an HTTP handler for the MCP server using Streamable HTTP transport.
//
//	mux := http.NewServeMux()
//	mux.Handle("/mcp", mcp.NewHTTPHandler(server, nil))
//	mux.HandleFunc("/health", mcp.NewHealthHandler(index, logger))
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: opts.Stateless})
}

// NewMux mounts the MCP endpoint, the health check and the landing page.
func NewMux(server *Server, index HealthChecker, logger *slog.Logger, opts *HTTPHandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", NewHTTPHandler(server, opts))
	mux.HandleFunc("/health", NewHealthHandler(index, logger))
	mux.HandleFunc("/", NewLandingHandler())
	return mux
}
