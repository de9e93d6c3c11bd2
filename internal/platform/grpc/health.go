package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthPollStart = 100 * time.Millisecond
	healthPollMax   = time.Second
)

// WaitForHealth blocks until the endpoint's health check reports SERVING or
// the context ends. Polling backs off from 100ms to 1s.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := grpc_health_v1.NewHealthClient(conn)
	delay := healthPollStart
	for {
		checkCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := client.Check(checkCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()

		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			if logf != nil {
				logf("daemon health check is SERVING")
			}
			return nil
		case err != nil:
			if logf != nil {
				logf("waiting for daemon health: %v", err)
			}
		default:
			if logf != nil {
				logf("waiting for daemon health: status %s", resp.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for daemon health: %w", ctx.Err())
		case <-time.After(delay):
		}
		if delay < healthPollMax {
			delay *= 2
			if delay > healthPollMax {
				delay = healthPollMax
			}
		}
	}
}
