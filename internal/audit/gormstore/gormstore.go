// Package gormstore implements the audit backend on GORM (SQLite or
// Postgres) with an internal queue and a background writer goroutine, so
// recording never blocks a request on a database write.
package gormstore

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/chembench/server/internal/audit"
	"github.com/chembench/server/internal/queue"
)

// OracleCall is the database row for one recorded oracle invocation.
type OracleCall struct {
	gorm.Model
	CalledAt   time.Time `gorm:"index"`
	Operation  string    `gorm:"size:64;index"`
	DurationMS int64
	Success    bool
	Error      string         `gorm:"size:1024"`
	Request    datatypes.JSON `gorm:"type:jsonb"`
	Response   datatypes.JSON `gorm:"type:jsonb"`
}

// Config holds writer tuning.
type Config struct {
	FlushInterval time.Duration
	BatchSize     int
}

// Backend buffers calls and writes them in batches.
type Backend struct {
	db      *gorm.DB
	cfg     Config
	log     *slog.Logger
	pending *queue.Queue[OracleCall]

	stopChan  chan struct{}
	doneChan  chan struct{}
	lastWrite atomic.Int64 // nanoseconds
}

// New creates a GORM-backed audit backend on an open database handle.
func New(db *gorm.DB, cfg Config, log *slog.Logger) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Backend{
		db:       db,
		cfg:      cfg,
		log:      log,
		pending:  queue.New[OracleCall](),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Init migrates the schema and starts the background writer.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(&OracleCall{}); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}

	go b.writeLoop()
	return nil
}

// Record implements audit.Backend.
func (b *Backend) Record(call audit.Call) {
	b.pending.Push(rowFromCall(call))
}

// Close stops the writer and flushes remaining rows.
func (b *Backend) Close() error {
	close(b.stopChan)
	<-b.doneChan
	return b.flush()
}

// GetLastDBWriteDuration returns the duration of the last flush, for
// status monitoring.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueDepth returns the number of rows awaiting a flush.
func (b *Backend) QueueDepth() int {
	return b.pending.Len()
}

func (b *Backend) writeLoop() {
	defer close(b.doneChan)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.flush(); err != nil {
				b.log.Error("audit flush failed", "error", err)
			}
		case <-b.stopChan:
			return
		}
	}
}

func (b *Backend) flush() error {
	rows := b.pending.Drain(b.cfg.BatchSize)
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	if err := b.db.CreateInBatches(rows, b.cfg.BatchSize).Error; err != nil {
		// rows are dropped rather than requeued; the audit log is
		// best-effort and requeueing a poison batch would loop forever
		return fmt.Errorf("insert %d audit rows: %w", len(rows), err)
	}
	b.lastWrite.Store(int64(time.Since(start)))

	b.log.Debug("audit rows written", "count", len(rows), "duration", time.Since(start))
	return nil
}

func rowFromCall(call audit.Call) OracleCall {
	return OracleCall{
		CalledAt:   call.Time,
		Operation:  call.Operation,
		DurationMS: call.DurationMS,
		Success:    call.Success,
		Error:      call.Error,
		Request:    datatypes.JSON(call.Request),
		Response:   datatypes.JSON(call.Response),
	}
}
