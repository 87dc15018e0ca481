package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/airink/storefront-backend/api/controllers"
	"github.com/airink/storefront-backend/api/routes"
	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/internal/cartstore"
	"github.com/airink/storefront-backend/internal/coupons"
	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/db"
	"github.com/airink/storefront-backend/pkg/firestore"
	"github.com/airink/storefront-backend/pkg/instance"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
	"github.com/airink/storefront-backend/pkg/migrate"
	"github.com/airink/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Instance:    instance.GetID(),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	fallback, err := cart.LoadFallbackTable(cfg.Coupons.FallbackFile)
	if err != nil {
		return err
	}

	readiness := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Configured() || cfg.Cart.LocalBackend == config.LocalBackendRedis {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient)
		readiness["redis"] = redisClient
	}

	var dbClient *db.Client
	if cfg.Cart.NeedsDB() {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			return err
		}
		closers = append(closers, dbClient)
		readiness["db"] = dbClient

		seedCoupons := migrate.Seeder{
			Name: "coupons",
			Run: func(ctx context.Context) (int, error) {
				return coupons.NewRepository(dbClient.DB()).Seed(ctx, fallback)
			},
		}
		if _, err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient, seedCoupons); err != nil {
			return err
		}
	}

	var fsClient *firestore.Client
	if cfg.Cart.RemoteBackend == config.RemoteBackendFirestore {
		fsClient, err = firestore.New(ctx, cfg.GCP, logg)
		if err != nil {
			return err
		}
		closers = append(closers, fsClient)
		readiness["firestore"] = fsClient
	}

	var local cart.LocalStore = cart.NewMemoryStore()
	if cfg.Cart.LocalBackend == config.LocalBackendRedis {
		local = cartstore.NewRedisLocal(redisClient, cfg.Cart.LocalTTL)
	}

	var (
		remote       cart.RemoteStore
		couponSource cart.CouponSource
	)
	switch cfg.Cart.RemoteBackend {
	case config.RemoteBackendPostgres:
		var notifier cartstore.Notifier
		if redisClient != nil {
			notifier = redisClient
		}
		remote = cartstore.NewPostgresRemote(dbClient, notifier, logg)
		couponSource = coupons.NewRepository(dbClient.DB())
	case config.RemoteBackendFirestore:
		remote = cartstore.NewFirestoreRemote(fsClient.Firestore(), logg)
		couponSource = coupons.NewFirestoreSource(fsClient.Firestore())
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if dbClient != nil {
		dbStats, err := dbClient.StatsCollector("storefront")
		if err != nil {
			return err
		}
		promRegistry.MustRegister(dbStats)
	}
	cartMetrics := metrics.NewCartMetrics(promRegistry)

	registry := cart.NewRegistry(cart.RegistryParams{
		Local:   local,
		Remote:  remote,
		Coupons: cart.NewCouponResolver(couponSource, fallback).WithObservability(logg, cartMetrics),
		Pricing: cart.Pricing{
			TaxRate:               cfg.Cart.TaxRate,
			FreeShippingThreshold: cfg.Cart.FreeShippingThreshold,
			FlatShippingFee:       cfg.Cart.FlatShippingFee,
		},
		Logger:        logg,
		Metrics:       cartMetrics,
		IdleTTL:       cfg.Cart.IdleTTL,
		SweepInterval: cfg.Cart.SweepInterval,
	})
	defer registry.Close()
	go func() {
		if err := registry.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cart registry sweep stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"local_backend":  cfg.Cart.LocalBackend,
		"remote_backend": cfg.Cart.RemoteBackend,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, readiness, registry, remote != nil, promRegistry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
