// Package main запускает HTTP-сервер и планировщик интернет-магазина.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/hanaro-shop/internal/config"
	"github.com/mmeshcher/hanaro-shop/internal/handler"
	"github.com/mmeshcher/hanaro-shop/internal/metrics"
	"github.com/mmeshcher/hanaro-shop/internal/middleware"
	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/repository"
	"github.com/mmeshcher/hanaro-shop/internal/scheduler"
	"github.com/mmeshcher/hanaro-shop/internal/service"
)

const schedulerLockPrefix = "hanaro:scheduler:"

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	jobMetrics := metrics.NewJobMetrics(reg)
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	svc := service.NewService(repo, logger, loc, checkoutMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.SeedAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		sugar.Fatalw("admin seeding error", "error", err.Error())
	}

	var redisClient *redis.Client
	locks := scheduler.NopLocks
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis configuration error", "error", err.Error())
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			sugar.Fatalw("redis connection error", "error", err.Error())
		}
		locks = scheduler.RedisLocks(redisClient, schedulerLockPrefix, 0)
	}

	sched, err := newScheduler(cfg, loc, repo, svc, logger, jobMetrics, locks)
	if err != nil {
		sugar.Fatalw("scheduler initialization error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is not set, tokens will not survive a restart")
	}
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter(httpMetrics, metrics.Handler(reg))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Планировщик статусов заказов и агрегации продаж
	g.Go(func() error {
		return sched.Run(ctx)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting hanaro-shop server", "addr", cfg.RunAddress, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	runErr := g.Wait()

	closeErr := svc.Close()
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if err := multierr.Append(runErr, closeErr); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newScheduler(
	cfg *config.Config,
	loc *time.Location,
	repo *repository.PostgresRepository,
	svc *service.Service,
	logger *zap.Logger,
	jobMetrics *metrics.JobMetrics,
	locks scheduler.LockFactory,
) (*scheduler.Scheduler, error) {
	transitions := []struct {
		name     string
		from, to model.OrderStatus
		after    time.Duration
		every    time.Duration
	}{
		{"orders-to-preparing", model.OrderStatusOrdered, model.OrderStatusPreparing, cfg.PreparingAfter, cfg.PreparingEvery},
		{"orders-to-shipping", model.OrderStatusPreparing, model.OrderStatusShipping, cfg.ShippingAfter, cfg.ShippingEvery},
		{"orders-to-delivered", model.OrderStatusShipping, model.OrderStatusDelivered, cfg.DeliveredAfter, cfg.DeliveredEvery},
	}

	entries := make([]scheduler.Entry, 0, len(transitions)+1)
	for _, t := range transitions {
		job, err := scheduler.NewTransitionJob(scheduler.TransitionParams{
			Name:    t.name,
			From:    t.from,
			To:      t.to,
			After:   t.after,
			Store:   repo,
			Logger:  logger,
			Metrics: jobMetrics,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, scheduler.Entry{Job: job, Schedule: scheduler.Every(t.every)})
	}

	dailyAt, err := scheduler.ParseDailyAt(cfg.DailySalesAt, loc)
	if err != nil {
		return nil, err
	}
	salesJob, err := scheduler.NewDailySalesJob(svc)
	if err != nil {
		return nil, err
	}
	entries = append(entries, scheduler.Entry{Job: salesJob, Schedule: dailyAt})

	return scheduler.New(scheduler.Params{
		Logger:  logger,
		Metrics: jobMetrics,
		Locks:   locks,
		Entries: entries,
	})
}
