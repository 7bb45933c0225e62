package mcp

import (
	"context"

	"lrp-copilot/internal/config"
	"lrp-copilot/internal/copilot"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const (
	serverName    = "lrp-copilot"
	serverVersion = "0.1.0"
)

// Server exposes the copilot service as MCP tools.
type Server struct {
	cfg *config.AppConfig
	svc *copilot.Service
}

// NewServer creates a new MCP server.
func NewServer(cfg *config.AppConfig, svc *copilot.Service) *Server {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	return &Server{cfg: cfg, svc: svc}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	s.registerTools(server)
	return server
}

// Serve runs the MCP server over stdio until the client disconnects or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("name", serverName).Str("version", serverVersion).Msg("Starting MCP server on stdio")
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}
