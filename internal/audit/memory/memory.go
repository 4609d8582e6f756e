// Package memory implements the audit backend as a bounded in-memory ring
// with optional JSON export on close.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chembench/server/internal/audit"
)

// Config holds memory audit backend settings.
type Config struct {
	Capacity  int    // maximum retained calls; older calls are evicted
	OutputDir string // when set, calls are exported as JSON on Close
}

// Backend keeps the most recent calls in memory.
type Backend struct {
	cfg   Config
	mu    sync.Mutex
	calls []audit.Call
}

// New creates a memory audit backend.
func New(cfg Config) *Backend {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	return &Backend{cfg: cfg}
}

// Init implements audit.Backend.
func (b *Backend) Init() error {
	return nil
}

// Record implements audit.Backend.
func (b *Backend) Record(call audit.Call) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if len(b.calls) > b.cfg.Capacity {
		b.calls = b.calls[len(b.calls)-b.cfg.Capacity:]
	}
}

// Calls returns a snapshot of the retained calls, oldest first.
func (b *Backend) Calls() []audit.Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := make([]audit.Call, len(b.calls))
	copy(calls, b.calls)
	return calls
}

// Close exports the retained calls when an output directory is configured.
func (b *Backend) Close() error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create audit output dir: %w", err)
	}

	name := fmt.Sprintf("oracle_calls.%s.json", time.Now().UTC().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(b.cfg.OutputDir, name))
	if err != nil {
		return fmt.Errorf("create audit export: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b.calls); err != nil {
		return fmt.Errorf("write audit export: %w", err)
	}
	return nil
}
