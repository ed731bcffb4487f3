// Package mcp implements the Model Context Protocol server for ogi.
//
// The MCP server exposes the same batch operations as the HTTP API
// through MCP tools, so MCP-compatible agents can fan tasks out to the
// venue and collect results without speaking the REST surface.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/ogi/internal/batch"
)

// Server wraps the MCP server with ogi's batch service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	batchSvc  *batch.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools registered.
func New(batchSvc *batch.Service, version string, logger *slog.Logger) *Server {
	s := &Server{
		batchSvc: batchSvc,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"ogi",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
