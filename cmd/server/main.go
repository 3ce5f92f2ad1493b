package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/draftkiller/backend/internal/config"
	"github.com/draftkiller/backend/internal/db"
	"github.com/draftkiller/backend/internal/httpapi"
	"github.com/draftkiller/backend/internal/store/rabbitmq"
	"github.com/draftkiller/backend/internal/store/redisstore"
	"github.com/draftkiller/backend/internal/usage"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Warn("redis unreachable, anonymous quota disabled", zap.Error(err))
		}
		cancel()
	}

	var publisher usage.Publisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Warn("rabbitmq unreachable, usage events go straight to the database", zap.Error(err))
		} else {
			publisher = pub
			defer pub.Close()
		}
	}

	tracker := usage.NewTracker(usage.TrackerOptions{
		Limit:     cfg.AnonRequestLimit,
		Window:    cfg.AnonLimitWindow,
		Store:     rds,
		Publisher: publisher,
		Fallback:  usage.NewRepo(gdb),
		Log:       log,
	})

	router := httpapi.NewRouter(gdb, cfg, log, tracker)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
