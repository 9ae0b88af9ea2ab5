package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechallan/config"
	"github.com/yoockh/voicechallan/internal/api/handlers"
	"github.com/yoockh/voicechallan/internal/api/middleware"
	"github.com/yoockh/voicechallan/internal/api/routes"
	"github.com/yoockh/voicechallan/internal/cache"
	"github.com/yoockh/voicechallan/internal/logger"
	"github.com/yoockh/voicechallan/internal/parser"
	"github.com/yoockh/voicechallan/internal/services"
	"github.com/yoockh/voicechallan/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logger.New(cfg.LogLevel)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rdb    *redis.Client
		drafts cache.DraftCache
	)
	if cfg.RedisAddr != "" {
		rdb, err = config.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Fatal("redis init error")
		}
		defer rdb.Close()
		drafts = cache.NewRedisDraftCache(rdb)
		log.Info("redis connected")
	} else {
		drafts = cache.NewMemoryDraftCache()
		log.Warn("no redis configured: drafts kept in memory, live dictation disabled")
	}

	transcripts := services.NewTranscriptService(parser.New(), drafts, cfg.DraftTTL, log)
	challans := services.NewChallanService(cfg.CompanyName, transcripts, log)

	deps := routes.Deps{
		Transcript:  handlers.NewTranscriptHandler(transcripts),
		Challan:     handlers.NewChallanHandler(challans),
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.AuthEnabled() {
		deps.JWT = &middleware.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience}
	}

	if rdb != nil {
		pool := &workers.TranscriptWorkerPool{
			Redis:       rdb,
			Transcripts: transcripts,
			NumWorkers:  cfg.Workers,
			Logger:      log,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("worker pool start error")
		}
		deps.WS = handlers.NewWSHandler(transcripts, pool, rdb, func(origin string) bool {
			return slices.Contains(cfg.CORSOrigins, origin)
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
