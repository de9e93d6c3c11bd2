// Package admin parses operator CLI flags and dispatches its subcommands.
package admin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/emberhabit/ember/internal/platform/cmd"
	"github.com/emberhabit/ember/internal/services/admin"
)

// Config holds admin command configuration.
type Config struct {
	DBPath      string        `env:"EMBER_PROGRESSION_DB_PATH"     envDefault:"data/progression.db"`
	DaemonAddr  string        `env:"EMBER_PROGRESSION_DAEMON_ADDR" envDefault:"localhost:8090"`
	DialTimeout time.Duration `env:"EMBER_ADMIN_DIAL_TIMEOUT"      envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config. Remaining
// arguments select the subcommand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, []string, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, nil, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the progression SQLite database")
	fs.StringVar(&cfg.DaemonAddr, "daemon-addr", cfg.DaemonAddr, "progression daemon gRPC address")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "daemon dial timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

// Run dispatches an admin subcommand.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if len(args) == 0 {
		return usageError()
	}

	adminCfg := admin.Config{
		DBPath:      cfg.DBPath,
		DaemonAddr:  cfg.DaemonAddr,
		DialTimeout: cfg.DialTimeout,
	}

	switch args[0] {
	case "cursors":
		return admin.DumpCursors(ctx, adminCfg, out)
	case "celebrations":
		fs := flag.NewFlagSet("celebrations", flag.ContinueOnError)
		scopeKind := fs.String("scope-kind", "", "filter to one axis: habit or group")
		scopeID := fs.String("scope-id", "", "filter to one scope id (requires -scope-kind)")
		limit := fs.Int("limit", 0, "maximum records to print")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return admin.DumpCelebrations(ctx, adminCfg, out, *scopeKind, *scopeID, *limit)
	case "health":
		return admin.ProbeHealth(ctx, adminCfg, out)
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func usageError() error {
	return fmt.Errorf("usage: admin [flags] <cursors|celebrations|health>")
}
