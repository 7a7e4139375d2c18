// Package main runs the background lecture pipeline worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lecturemate/backend/config"
	"github.com/lecturemate/backend/internal/app"
	"github.com/lecturemate/backend/internal/worker"
)

// stopGrace bounds how long in-flight lectures get to reach a checkpoint after a signal.
const stopGrace = 30 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer a.Close()

	if a.Supervisor != nil {
		if err := a.Supervisor.Start(ctx); err != nil {
			logger.Warn("local model server did not start", zap.Error(err))
		}
		defer a.Supervisor.Stop()
	}

	processor := worker.NewLectureProcessor(a.Orchestrator, a.Registry, a.Queue, cfg.Pipeline.WorkerConcurrency, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.Int("concurrency", cfg.Pipeline.WorkerConcurrency))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
