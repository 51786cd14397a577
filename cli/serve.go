package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/room4-2/livetranslate/config"
	"github.com/room4-2/livetranslate/gemini"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/server"
	"github.com/room4-2/livetranslate/wirelog"
)

const (
	wireLogKey     = "wirelog"
	wireLogMaxLen  = 5000
	wireLogBuffer  = 1024
	cleanupEvery   = time.Minute
	shutdownPeriod = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket bridge for a browser UI",
	Long: `Serve listens on PORT and gives every UI connection on /ws its own
translation session. Health is reported on /health and Prometheus metrics
on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rdb := cfg.ConnectRedis(ctx)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("redis connected", slog.String("addr", cfg.RedisURL))
	} else {
		logger.Warn("running without redis: resumption handles and wire log are not persisted")
	}

	m := metrics.New()
	wire, closeWire, err := openWireLog(cfg, rdb, m, logger)
	if err != nil {
		return err
	}
	defer closeWire()

	manager := server.NewManager(server.ManagerOptions{
		Config:  cfg,
		Dialer:  gemini.NewDialer(logger),
		Redis:   rdb,
		WireLog: wire,
		Metrics: m,
		Logger:  logger,
	})
	go manager.StartCleanupRoutine(ctx, cleanupEvery)

	srv := server.NewServer(cfg, manager, m, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
		case <-ctx.Done():
		}
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openWireLog fans wire entries out to redis and an optional JSONL file,
// behind an async recorder so logging never blocks a session.
func openWireLog(cfg *config.Config, rdb *redis.Client, m *metrics.Metrics, logger *slog.Logger) (wirelog.Recorder, func(), error) {
	var sinks wirelog.Multi
	var file *os.File

	if rdb != nil {
		sinks = append(sinks, wirelog.NewRedis(rdb, wireLogKey, wireLogMaxLen, logger))
	}
	if cfg.WireLogFile != "" {
		f, err := os.OpenFile(cfg.WireLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open wire log: %w", err)
		}
		file = f
		sinks = append(sinks, wirelog.NewJSONL(f))
	}
	if len(sinks) == 0 {
		return wirelog.Nop{}, func() {}, nil
	}

	async := wirelog.NewAsync(sinks, wireLogBuffer, m.WireLogDrop)
	return async, func() {
		async.Close()
		if file != nil {
			file.Close()
		}
	}, nil
}
