// Package service hosts the assist MCP server over stdio. It opens the
// progression store read-only and exposes the engine's pure operations as
// tools for coaching assistants.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emberhabit/ember/internal/services/mcp/domain"
	progressionsqlite "github.com/emberhabit/ember/internal/services/progression/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "Ember Assist"
	serverVersion = "0.1.0"
)

// Config configures the assist MCP server.
type Config struct {
	// DBPath locates the progression daemon's SQLite database.
	DBPath string
}

// Server hosts the assist MCP server.
type Server struct {
	mcpServer *mcp.Server
	store     *progressionsqlite.Store
}

// New opens the progression store and registers the assist tools.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	store, err := progressionsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open progression store: %w", err)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerProgressionTools(mcpServer, store, time.Now)

	return &Server{mcpServer: mcpServer, store: store}, nil
}

func registerProgressionTools(server *mcp.Server, store *progressionsqlite.Store, clock func() time.Time) {
	mcp.AddTool(server, domain.TierResolveTool(), domain.TierResolveHandler())
	mcp.AddTool(server, domain.QuestTargetTool(), domain.QuestTargetHandler())
	mcp.AddTool(server, domain.MilestonePreviewTool(), domain.MilestonePreviewHandler(clock))
	mcp.AddTool(server, domain.CursorListTool(), domain.CursorListHandler(store))
	mcp.AddTool(server, domain.CelebrationListTool(), domain.CelebrationListHandler(store))
}

// Serve runs the MCP server on stdio until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close progression store: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close progression store: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Close releases the progression store held by the server.
func (s *Server) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return err
	}
	s.store = nil
	return nil
}

// Run is the service entrypoint for the assist server; it blocks until the
// context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	log.Printf("assist MCP server serving on stdio")
	return server.Serve(ctx)
}
