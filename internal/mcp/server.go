package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	engine Engine
}

// Config holds server dependencies.
type Config struct {
	Engine  Engine
	Version string // Reported to clients; defaults to v0.1.0
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "medrag-server",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "ask",
		Description: "Answer a medical question from the indexed medical knowledge base. " +
			"Returns the answer with cited sources and a conversation_id; pass it back to ask follow-up questions. " +
			"Answers are educational and not a substitute for professional medical advice.",
	}, makeAskHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_history",
		Description: "Get the recent messages of a conversation, oldest first.",
	}, makeHistoryHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_conversation",
		Description: "Forget a conversation so the next question starts fresh.",
	}, makeClearHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Get knowledge index statistics and the engine's retrieval settings.",
	}, makeStatsHandler(cfg.Engine))

	return &Server{
		server: server,
		engine: cfg.Engine,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
