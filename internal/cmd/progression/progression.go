// Package progression parses daemon command flags and starts the runtime.
package progression

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/emberhabit/ember/internal/platform/cmd"
	"github.com/emberhabit/ember/internal/services/progression/app"
)

// Config holds progression daemon command configuration.
type Config struct {
	HTTPAddr        string        `env:"EMBER_PROGRESSION_HTTP_ADDR" envDefault:":8091"`
	GRPCPort        int           `env:"EMBER_PROGRESSION_GRPC_PORT" envDefault:"8090"`
	DBPath          string        `env:"EMBER_PROGRESSION_DB_PATH"   envDefault:"data/progression.db"`
	BackendURL      string        `env:"EMBER_BACKEND_URL"`
	BackendToken    string        `env:"EMBER_BACKEND_TOKEN"`
	RefreshInterval time.Duration `env:"EMBER_REFRESH_INTERVAL"      envDefault:"15m"`
	QuestTargetPct  float64       `env:"EMBER_PROGRESSION_QUEST_TARGET_PCT" envDefault:"0.6"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "celebration feed listen address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "daemon health gRPC port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the progression SQLite database")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "hosted progression API base URL")
	fs.StringVar(&cfg.BackendToken, "backend-token", cfg.BackendToken, "hosted progression API bearer token")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "interval between refresh sweeps over tracked scopes")
	fs.Float64Var(&cfg.QuestTargetPct, "quest-target-pct", cfg.QuestTargetPct, "fraction of the habit count used to scale quest targets")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the progression daemon.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProgression, func(runCtx context.Context) error {
		return app.Run(runCtx, app.RuntimeConfig{
			HTTPAddr:        cfg.HTTPAddr,
			GRPCPort:        cfg.GRPCPort,
			DBPath:          cfg.DBPath,
			BackendBaseURL:  cfg.BackendURL,
			BackendToken:    cfg.BackendToken,
			RefreshInterval: cfg.RefreshInterval,
			QuestTargetPct:  cfg.QuestTargetPct,
		})
	})
}
