// chembench-server is the virtual chemistry workbench backend: it serves
// the session/canvas HTTP API, talks to the Gemini oracle, and pushes live
// state to WebSocket viewers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chembench/server/internal/audit"
	auditfactory "github.com/chembench/server/internal/audit/factory"
	"github.com/chembench/server/internal/canvas"
	"github.com/chembench/server/internal/config"
	"github.com/chembench/server/internal/dispatcher"
	"github.com/chembench/server/internal/influx"
	"github.com/chembench/server/internal/judge"
	"github.com/chembench/server/internal/logging"
	"github.com/chembench/server/internal/monitor"
	"github.com/chembench/server/internal/oracle"
	intOtel "github.com/chembench/server/internal/otel"
	"github.com/chembench/server/internal/server"
	"github.com/chembench/server/internal/session"
	"github.com/chembench/server/internal/stream"
	"github.com/chembench/server/pkg/streaming"
)

// Version can be set at build time via ldflags.
var Version = "0.0.1"

const serviceName = "chembench-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing chembench.cfg.json")
	flag.Parse()

	configLoadErr := config.Load(*configDir)

	sessionStart := time.Now()
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, serviceName, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	graylogAddr := ""
	if config.GetBool("graylog.enabled") {
		graylogAddr = config.GetString("graylog.address")
	}
	zlog, err := logging.NewZerolog(config.GetString("logLevel"), logFile, graylogAddr)
	if err != nil {
		return fmt.Errorf("init zerolog: %w", err)
	}

	otelCfg := config.GetOTelConfig()
	otelProvider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logFile, config.GetString("logLevel"), otelProvider.LoggerProvider())

	// Every record carries the live session count once the registry is up.
	var sessions *session.Manager
	logger := slog.New(logging.NewContextHandler(slogManager.Logger().Handler(), func() []slog.Attr {
		if sessions == nil {
			return nil
		}
		return []slog.Attr{slog.Int("activeSessions", sessions.Count())}
	}))

	logger.Info("Starting", "service", serviceName, "version", Version)
	if configLoadErr != nil {
		logger.Warn("No config file found, using defaults", "error", configLoadErr)
	}

	auditBackend, err := auditfactory.NewBackend(config.GetAuditConfig(), zlog, logger)
	if err != nil {
		return fmt.Errorf("create audit backend: %w", err)
	}
	if err := auditBackend.Init(); err != nil {
		return fmt.Errorf("init audit backend: %w", err)
	}

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		backupPath := filepath.Join(logsDir, "influx_backup.log.gz")
		influxManager = influx.NewManager(zlog, backupPath)
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			influxManager = nil
		}
	}

	hub := stream.NewHub(logger)

	events, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	if influxManager != nil {
		registerActivityMetrics(events, influxManager)
	}

	// Every canvas mutation, including ones made outside a request handler,
	// pushes a full state snapshot to that session's viewers.
	sessions = session.NewManager(func(id string) []canvas.Option {
		return []canvas.Option{canvas.WithNotify(func() {
			sess, ok := sessions.Get(id)
			if !ok {
				return
			}
			hub.Broadcast(streaming.TypeCanvasState, id, streaming.CanvasStatePayload{
				Items:   sess.Canvas.Items(),
				Verdict: sess.Canvas.Verdict(),
			})
		})}
	})

	oracleCfg := config.GetOracleConfig()
	geminiClient := oracle.NewClient(oracle.ClientConfig{
		BaseURL:    oracleCfg.BaseURL,
		APIKey:     oracleCfg.APIKey,
		ProModel:   oracleCfg.ProModel,
		FlashModel: oracleCfg.FlashModel,
		ImageModel: oracleCfg.ImageModel,
	})
	instrumented, err := oracle.Instrument(geminiClient, auditBackend, logger)
	if err != nil {
		return fmt.Errorf("instrument oracle: %w", err)
	}
	if influxManager != nil {
		instrumented.SetCallObserver(func(operation string, durationMS int64, success bool) {
			bucket, point := influx.OracleCallPoint(operation, durationMS, success)
			if err := influxManager.WritePoint(context.Background(), bucket, point); err != nil {
				logger.Warn("Oracle call point write failed", "error", err)
			}
		})
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager:      slogManager,
		Sessions:        sessions,
		Influx:          influxManager,
		ViewerCount:     hub.ClientCount,
		AuditQueueDepth: auditQueueDepth(auditBackend),
	})
	if err := monitorService.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	api := server.New(server.Dependencies{
		Sessions: sessions,
		Oracle:   instrumented,
		Judge:    judge.New(instrumented, logger),
		Hub:      hub,
		Events:   events,
		Logger:   logger,
	})

	httpCfg := config.GetHTTPConfig()
	httpServer := &http.Server{
		Addr:         httpCfg.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpCfg.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	case err := <-serveErr:
		logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	monitorService.Stop()
	hub.Close()

	if err := auditBackend.Close(); err != nil {
		logger.Error("Audit backend close error", "error", err)
	}
	if err := slogManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "log flush error: %v\n", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "otel shutdown error: %v\n", err)
	}

	logger.Info("Stopped", "service", serviceName)
	return nil
}

// registerActivityMetrics forwards published session events to InfluxDB.
func registerActivityMetrics(events *dispatcher.Dispatcher, mgr *influx.Manager) {
	names := []string{
		streaming.TypeExperimentLoaded,
		streaming.TypeItemInserted,
		streaming.TypeItemMoved,
		streaming.TypeCanvasReset,
		streaming.TypeCanvasCleared,
		streaming.TypeVerdict,
		streaming.TypeChatMessage,
	}
	for _, name := range names {
		events.Register(name, func(e dispatcher.Event) (any, error) {
			bucket, point := influx.SessionActivityPoint(e.Name, e.SessionID)
			return nil, mgr.WritePoint(context.Background(), bucket, point)
		}, dispatcher.Buffered(64))
	}
}

// auditQueueDepth exposes the pending-row counter of backends that batch.
func auditQueueDepth(backend audit.Backend) func() int {
	if b, ok := backend.(interface{ QueueDepth() int }); ok {
		return b.QueueDepth
	}
	return nil
}
