package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"qrattend/internal/attendance"
	"qrattend/internal/clock"
	"qrattend/internal/config"
	"qrattend/internal/logger"
	"qrattend/internal/queue"
	"qrattend/internal/store"
	"qrattend/internal/token"
)

// Worker writes audit lines for published events and sweeps stale tokens.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Log.WithError(err).Fatal("ensure schema failed")
	}

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}
	if cfg.QueueBackend == "memory" {
		logger.Log.Warn("memory queue is process-local; the worker will only sweep tokens")
	}

	q, err := queue.Open(cfg, redisClient)
	if err != nil {
		logger.Log.WithError(err).Fatal("queue init failed")
	}
	defer q.Close()

	go token.Sweep(ctx, token.NewRepository(db), clock.System{}, cfg.SweepInterval)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("queue consume init failed")
	}

	logger.Log.Info("worker started, waiting for messages")
	for msg := range messages {
		audit(msg)
	}
	logger.Log.Info("worker stopped")
}

func audit(msg queue.Message) {
	entry := logger.WithFields(logrus.Fields{"event_id": msg.ID, "type": msg.Type, "at": msg.At})
	switch msg.Type {
	case queue.TypeTokenIssued:
		var evt token.IssuedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			entry.WithError(err).Warn("bad token.issued payload")
			return
		}
		entry.WithFields(logrus.Fields{
			"token_id":     evt.TokenID,
			"token_prefix": evt.ValuePrefix,
			"expires_at":   evt.ExpiresAt,
		}).Info("audit: token issued")
	case queue.TypeAttendanceRecorded:
		var evt attendance.RecordedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			entry.WithError(err).Warn("bad attendance.recorded payload")
			return
		}
		entry.WithFields(logrus.Fields{
			"record_id":    evt.RecordID,
			"student_id":   evt.StudentID,
			"date":         evt.Date,
			"token_prefix": evt.TokenPrefix,
		}).Info("audit: attendance recorded")
	default:
		entry.Debug("ignoring event")
	}
}
