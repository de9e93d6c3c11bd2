package progression

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("progression", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8091" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GRPCPort != 8090 {
		t.Fatalf("expected default grpc port, got %d", cfg.GRPCPort)
	}
	if cfg.RefreshInterval != 15*time.Minute {
		t.Fatalf("expected default refresh interval, got %s", cfg.RefreshInterval)
	}
	if cfg.QuestTargetPct != 0.6 {
		t.Fatalf("expected default quest target pct, got %v", cfg.QuestTargetPct)
	}
}

func TestParseConfigFlagsOverrideDefaults(t *testing.T) {
	fs := flag.NewFlagSet("progression", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-db", "/tmp/test.db", "-grpc-port", "9000", "-refresh-interval", "1m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("db path = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.GRPCPort != 9000 {
		t.Fatalf("grpc port = %d, want 9000", cfg.GRPCPort)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Fatalf("refresh interval = %s, want 1m", cfg.RefreshInterval)
	}
}
