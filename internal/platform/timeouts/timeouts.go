// Package timeouts centralizes timeout values shared across services.
package timeouts

import "time"

const (
	// GRPCDial bounds how long clients wait to reach a gRPC server.
	GRPCDial = 2 * time.Second

	// GRPCRequest bounds individual gRPC calls issued by tooling.
	GRPCRequest = 2 * time.Second

	// BackendRequest bounds individual HTTP calls to the progression backend.
	BackendRequest = 10 * time.Second

	// ReadHeader bounds how long HTTP servers wait for request headers.
	ReadHeader = 5 * time.Second

	// Shutdown bounds graceful termination of servers and background loops.
	Shutdown = 5 * time.Second
)
