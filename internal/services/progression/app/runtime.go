// Package app hosts the progression daemon runtime: the engine wired to its
// SQLite store and backend client, the websocket celebration feed, the
// background refresh loop, and a health-only gRPC endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emberhabit/ember/internal/platform/timeouts"
	"github.com/emberhabit/ember/internal/services/progression/backend/httpapi"
	"github.com/emberhabit/ember/internal/services/progression/domain"
	progressionsqlite "github.com/emberhabit/ember/internal/services/progression/storage/sqlite"
	"github.com/emberhabit/ember/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls daemon startup and loop behavior.
type RuntimeConfig struct {
	HTTPAddr          string
	GRPCPort          int
	DBPath            string
	BackendBaseURL    string
	BackendToken      string
	RefreshInterval   time.Duration
	QuestTargetPct    float64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

const (
	defaultHTTPAddr = ":8091"
	defaultGRPCPort = 8090
	defaultDBPath   = "data/progression.db"
)

// Run starts the progression daemon and blocks until the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = defaultGRPCPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progression storage dir: %w", err)
		}
	}

	store, err := progressionsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open progression sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close progression sqlite store: %v", closeErr)
		}
	}()

	backendClient, err := httpapi.New(httpapi.Config{
		BaseURL: cfg.BackendBaseURL,
		Token:   cfg.BackendToken,
	})
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}

	hub := newScopeHub()
	sink := newFeedEventSink(store, hub, log.Printf)
	service, err := domain.NewService(domain.Deps{
		QuestTargetPercent: cfg.QuestTargetPct,
		Backend:            backendClient,
		Cursors:            cursorStoreAdapter{store: store},
		Events:             sink,
		Telemetry:          telemetryAdapter{emitter: telemetry.NewEmitter(store), logf: log.Printf},
		Logf:               log.Printf,
	})
	if err != nil {
		return fmt.Errorf("init progression service: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	activate := func(scope domain.Scope) {
		go func() {
			refreshCtx, cancelRefresh := context.WithTimeout(runCtx, timeouts.BackendRequest)
			defer cancelRefresh()
			refreshCtx, span := otel.Tracer(tracerName).Start(refreshCtx, "progression.activation_refresh",
				trace.WithAttributes(attribute.String("scope", scope.Key())),
			)
			defer span.End()
			if _, err := service.Refresh(refreshCtx, scope); err != nil {
				span.RecordError(err)
				log.Printf("progression: activation refresh scope=%s: %v", scope.Key(), err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newFeedHandler(hub, store, activate),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on daemon gRPC port %d: %w", cfg.GRPCPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("progression.daemon", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()
	log.Printf("progression daemon feed listening on %s, gRPC on %v", cfg.HTTPAddr, listener.Addr())

	loop := newRefreshLoop(service, store, cfg.RefreshInterval, log.Printf)
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(runCtx)
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			return fmt.Errorf("serve feed: %w", err)
		}
	case err := <-grpcErr:
		grpcErr <- err
		cancel()
		if err != nil {
			return fmt.Errorf("serve gRPC health: %w", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown feed server: %w", err)
	}
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("refresh loop: %w", err)
	}
	return nil
}
