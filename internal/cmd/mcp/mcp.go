// Package mcp parses assist server flags and starts the stdio MCP server.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/emberhabit/ember/internal/platform/cmd"
	"github.com/emberhabit/ember/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath string `env:"EMBER_PROGRESSION_DB_PATH" envDefault:"data/progression.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the progression SQLite database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the assist MCP server on stdio.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(runCtx context.Context) error {
		return service.Run(runCtx, service.Config{DBPath: cfg.DBPath})
	})
}
