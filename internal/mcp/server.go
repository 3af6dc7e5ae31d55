// ABOUTME: MCP server setup for the fitlog data layer.
// ABOUTME: Wraps MCP server with storage Repository connection and a settings cache.
package mcp

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitlog/internal/storage"
	"github.com/harperreed/fitlog/internal/views"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	repo      storage.Repository
	settings  *views.SettingsCache
	logger    *log.Logger
}

// NewServer creates a new MCP server with the given storage.
func NewServer(repo storage.Repository, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fitlog",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		repo:      repo,
		settings:  views.NewSettingsCache(repo, repo.Bus()),
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	defer s.settings.Close()
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
