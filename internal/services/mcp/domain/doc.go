// Package domain defines the assist server's MCP tool schemas and handlers.
// Every tool is read-only: handlers resolve against the in-process
// progression engine and the local store, never against the hosted backend.
package domain
