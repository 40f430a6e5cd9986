// Package main runs the background worker: queued email delivery and the
// sweep of expired unconfirmed registrations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aura-lms/registration/config"
	"github.com/aura-lms/registration/internal/emaillogs"
	"github.com/aura-lms/registration/internal/metrics"
	"github.com/aura-lms/registration/internal/registrations"
	"github.com/aura-lms/registration/internal/worker"
	"github.com/aura-lms/registration/pkg/database"
	"github.com/aura-lms/registration/pkg/mailer"
	"github.com/aura-lms/registration/pkg/queue"
	"github.com/aura-lms/registration/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var m worker.Mailer
	if cfg.Email.SMTPHost != "" {
		m = mailer.NewSMTP(mailer.Config{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.SMTPUser,
			Password:    cfg.Email.SMTPPass,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set, email is logged instead of sent")
		m = mailer.NewLogOnly(logger)
	}

	mx := metrics.New(prometheus.DefaultRegisterer)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, emaillogs.NewRepository(pool), m, mx,
		time.Duration(cfg.Worker.PollTimeoutSeconds)*time.Second, logger)

	// Sweeping needs only the store; the rest of the workflow runs in the server.
	registrationSvc := registrations.NewService(registrations.Deps{
		Store:   registrations.NewRepository(pool),
		Metrics: mx,
		Logger:  logger,
	}, registrations.Options{
		Retention: time.Duration(cfg.Registration.RetentionHours) * time.Hour,
	})
	sweeper := worker.NewExpirySweeper(registrationSvc,
		time.Duration(cfg.Worker.SweepIntervalMinutes)*time.Minute, logger)

	workerCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(workerCtx)
	g.Go(func() error {
		processor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	logger.Info("worker started")

	_ = g.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
