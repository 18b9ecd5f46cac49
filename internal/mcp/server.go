// Package mcp exposes the returns assistant as MCP tools so an external
// orchestrator can drive eligibility checks, confirmations and knowledge
// questions directly.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
)

// Version is set via ldflags at build time.
var Version = "dev"

// mcpChannel prefixes conversations minted by tool calls.
const mcpChannel = "mcp"

// Server wraps an MCP server that exposes the returns tools.
type Server struct {
	conversations *assistant.Conversations
	logger        *zap.Logger
	mcp           *server.MCPServer
}

// NewServer creates a new MCP server around a conversation runner.
func NewServer(conversations *assistant.Conversations, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		conversations: conversations,
		logger:        logger,
	}

	s.mcp = server.NewMCPServer(
		"ecobot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(checkEligibilityTool, s.handleCheckEligibility)
	s.mcp.AddTool(confirmReturnTool, s.handleConfirmReturn)
	s.mcp.AddTool(askKnowledgeTool, s.handleAskKnowledge)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
