// Package audit records every oracle invocation — operation, latency,
// outcome and payloads — for cost and behavior analysis. Recording is
// best-effort and must never slow down or fail a user-facing request.
package audit

import (
	"encoding/json"
	"time"
)

// Call describes one completed oracle invocation.
type Call struct {
	Time       time.Time
	Operation  string
	DurationMS int64
	Success    bool
	Error      string
	Request    json.RawMessage
	Response   json.RawMessage
}

// Backend is the interface all audit log implementations satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Record stores one call. Implementations must not block the caller.
	Record(call Call)
}
