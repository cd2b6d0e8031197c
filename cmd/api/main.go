package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/attendance"
	"qrattend/internal/clock"
	"qrattend/internal/config"
	"qrattend/internal/httpapi"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/logger"
	"qrattend/internal/queue"
	"qrattend/internal/store"
	"qrattend/internal/token"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	checks := map[string]httpapi.HealthCheck{"db": db.Healthy}

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient.Healthy
	}

	q, err := queue.Open(cfg, redisClient)
	if err != nil {
		return err
	}
	defer q.Close()
	if cfg.QueueBackend == "memory" {
		// nobody else can read an in-process queue; drain it into the log
		go drain(ctx, q)
	}

	clk := clock.System{}
	tokens := token.NewRepository(db)
	ledger := attendance.NewRepository(db)
	issuer := token.NewIssuer(tokens, clk, cfg.TokenTTL, q)
	issuer.SetPublishTimeout(cfg.PublishTimeout)
	recorder := attendance.NewRecorder(tokens, ledger, clk, q, attendance.Options{
		SingleUse:      cfg.TokenSingleUse,
		PublishTimeout: cfg.PublishTimeout,
	})
	h := httpapi.New(
		issuer,
		tokens,
		recorder,
		ledger,
		checks,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger("/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders(cfg.Production()))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r, cfg.JWTSigningKey, cfg.JWTIssuer)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("server forced shutdown")
	}

	logger.Log.Info("server exited")
	return nil
}

func drain(ctx context.Context, q queue.Queue) {
	messages, err := q.Consume(ctx)
	if err != nil {
		return
	}
	for msg := range messages {
		logger.WithField("type", msg.Type).WithField("event_id", msg.ID).Debug("event")
	}
}
