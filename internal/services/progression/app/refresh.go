package app

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
)

const tracerName = "progression"

const (
	defaultRefreshInterval = 15 * time.Minute
	minRefreshInterval     = 10 * time.Second
)

// refreshLoop replays the natural trigger for every tracked scope on a fixed
// interval. A scope counts as tracked once it has a cursor.
type refreshLoop struct {
	service  *domain.Service
	cursors  storage.CursorStore
	interval time.Duration
	logf     func(format string, args ...any)
	tracer   trace.Tracer
}

func newRefreshLoop(service *domain.Service, cursors storage.CursorStore, interval time.Duration, logf func(format string, args ...any)) *refreshLoop {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if interval < minRefreshInterval {
		interval = minRefreshInterval
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &refreshLoop{
		service:  service,
		cursors:  cursors,
		interval: interval,
		logf:     logf,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run executes refresh sweeps until the context ends. The first sweep is
// jittered so a fleet of restarting daemons does not stampede the backend.
func (l *refreshLoop) Run(ctx context.Context) error {
	jitter := time.Duration(rand.Int63n(int64(l.interval) / 4))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *refreshLoop) sweep(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, "progression.refresh_sweep")
	defer span.End()

	records, err := l.cursors.ListCursors(ctx)
	if err != nil {
		span.RecordError(err)
		l.logf("progression: refresh sweep list cursors: %v", err)
		return
	}
	span.SetAttributes(attribute.Int("scope_count", len(records)))

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		kind, err := domain.ParseScopeKind(record.ScopeKind)
		if err != nil {
			l.logf("progression: refresh sweep skip scope %s/%s: %v", record.ScopeKind, record.ScopeID, err)
			continue
		}
		scope := domain.Scope{Kind: kind, ID: record.ScopeID}
		if err := l.refreshScope(ctx, scope); err != nil {
			// Transient backend failures are expected here; the next sweep
			// retries with unchanged state.
			l.logf("progression: refresh scope=%s: %v", scope.Key(), err)
		}
	}
}

func (l *refreshLoop) refreshScope(ctx context.Context, scope domain.Scope) error {
	ctx, span := l.tracer.Start(ctx, "progression.refresh",
		trace.WithAttributes(attribute.String("scope", scope.Key())),
	)
	defer span.End()

	if _, err := l.service.Refresh(ctx, scope); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
