// Package monitor periodically reports server health and prunes idle
// sessions.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/chembench/server/internal/influx"
	"github.com/chembench/server/internal/logging"
	"github.com/chembench/server/internal/session"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	LogManager *logging.SlogManager
	Sessions   *session.Manager
	Influx     *influx.Manager // optional

	// ViewerCount reports connected stream viewers.
	ViewerCount func() int
	// AuditQueueDepth reports audit rows awaiting a flush. May be nil for
	// backends without a write queue.
	AuditQueueDepth func() int

	Interval       time.Duration
	SessionMaxIdle time.Duration
}

// Status is one health snapshot.
type Status struct {
	Time            time.Time `json:"time"`
	Sessions        int       `json:"sessions"`
	Viewers         int       `json:"viewers"`
	Goroutines      int       `json:"goroutines"`
	MemoryMB        float64   `json:"memoryMB"`
	AuditQueueDepth int       `json:"auditQueueDepth"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.SessionMaxIdle <= 0 {
		deps.SessionMaxIdle = 2 * time.Hour
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot gathers the current health snapshot.
func (s *Service) Snapshot() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Time:       time.Now().UTC(),
		Sessions:   s.deps.Sessions.Count(),
		Goroutines: runtime.NumGoroutine(),
		MemoryMB:   float64(mem.Alloc) / 1024 / 1024,
	}
	if s.deps.ViewerCount != nil {
		st.Viewers = s.deps.ViewerCount()
	}
	if s.deps.AuditQueueDepth != nil {
		st.AuditQueueDepth = s.deps.AuditQueueDepth()
	}
	return st
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.Snapshot()

				logger.Debug("Server status",
					"sessions", st.Sessions,
					"viewers", st.Viewers,
					"goroutines", st.Goroutines,
					"memoryMB", st.MemoryMB,
					"auditQueueDepth", st.AuditQueueDepth,
				)

				if s.deps.Influx != nil {
					bucket, point := influx.ServerStatusPoint(
						st.Sessions, st.Goroutines, st.MemoryMB, st.AuditQueueDepth)
					if err := s.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
						logger.Error("Error writing status point", "error", err)
					}
				}

				if pruned := s.deps.Sessions.PruneIdle(s.deps.SessionMaxIdle); pruned > 0 {
					logger.Info("Pruned idle sessions", "count", pruned)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
