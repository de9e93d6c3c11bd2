// Package domain implements the progression reconciliation engine: tier
// resolution, milestone accounting, award reconciliation, and celebration
// detection. Everything here is synchronous and free of I/O; persistence and
// transport are injected through the narrow interfaces this package declares.
package domain
