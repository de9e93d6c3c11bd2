// Package admin implements the operator CLI: it inspects the progression
// daemon's local store and probes the daemon's health endpoint. Reads go
// straight to the SQLite file; WAL mode keeps them safe alongside a running
// daemon.
package admin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	platformgrpc "github.com/emberhabit/ember/internal/platform/grpc"
	"github.com/emberhabit/ember/internal/platform/timeouts"
	"github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
	progressionsqlite "github.com/emberhabit/ember/internal/services/progression/storage/sqlite"
)

// Config holds admin CLI configuration.
type Config struct {
	DBPath      string
	DaemonAddr  string
	DialTimeout time.Duration
}

const defaultCelebrationLimit = 20

// DumpCursors prints every tracked scope's progress cursor.
func DumpCursors(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cursors, err := store.ListCursors(ctx)
	if err != nil {
		return fmt.Errorf("list cursors: %w", err)
	}
	if len(cursors) == 0 {
		fmt.Fprintln(out, "no cursors recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tVALUE\tUPDATED")
	for _, cursor := range cursors {
		fmt.Fprintf(w, "%s/%s\t%d\t%s\n", cursor.ScopeKind, cursor.ScopeID, cursor.Value, cursor.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

// DumpCelebrations prints recent celebrations, optionally filtered to one
// scope. Both scope fields must be given together.
func DumpCelebrations(ctx context.Context, cfg Config, out io.Writer, scopeKind, scopeID string, limit int) error {
	scopeKind = strings.TrimSpace(scopeKind)
	scopeID = strings.TrimSpace(scopeID)
	if (scopeKind == "") != (scopeID == "") {
		return fmt.Errorf("scope kind and scope id must be provided together")
	}
	if scopeKind != "" {
		if _, err := domain.ParseScopeKind(scopeKind); err != nil {
			return err
		}
	}
	if limit <= 0 {
		limit = defaultCelebrationLimit
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var records []storage.CelebrationRecord
	if scopeKind != "" {
		records, err = store.ListCelebrationsByScope(ctx, scopeKind, scopeID, limit)
	} else {
		records, err = store.ListRecentCelebrations(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("list celebrations: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no celebrations recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIRED\tSCOPE\tKIND\tTRANSITION\tTIER")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d -> %d\t%s\n",
			record.CreatedAt.UTC().Format(time.RFC3339),
			record.ScopeKind, record.ScopeID,
			record.Kind,
			record.OldValue, record.NewValue,
			record.CurrentTier,
		)
	}
	return w.Flush()
}

// ProbeHealth dials the daemon and waits for its health check to report
// SERVING.
func ProbeHealth(ctx context.Context, cfg Config, out io.Writer) error {
	addr := strings.TrimSpace(cfg.DaemonAddr)
	if addr == "" {
		return fmt.Errorf("daemon address is required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = timeouts.GRPCDial
	}

	logf := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	}
	conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, dialTimeout, logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(out, "daemon %s: SERVING\n", addr)
	return nil
}

func openStore(cfg Config) (*progressionsqlite.Store, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	store, err := progressionsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open progression store: %w", err)
	}
	return store, nil
}
