package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"api_commerce/api"
	"api_commerce/internal/catalog"
	"api_commerce/internal/config"
	"api_commerce/internal/entitlement"
	"api_commerce/internal/identity"
	"api_commerce/internal/records"
	"api_commerce/internal/revenue"
	"api_commerce/internal/tracing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadENV(); err != nil {
		panic(fmt.Errorf("error loading .env: %v", err))
	}
	cfg, err := config.Get()
	if err != nil {
		panic(fmt.Errorf("invalid configuration: %v", err))
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	var payments entitlement.PaymentVerifier = entitlement.UnavailablePayments{}
	if cfg.PaymentVerifier == config.PaymentsOrders {
		payments = entitlement.NewOrderPayments(store)
	}

	ledger := entitlement.NewLedger(store, payments, logger)
	resolver := entitlement.NewResolver(store, ledger, logger)
	stats := revenue.NewService(store, revenue.Options{IncludeProductSales: cfg.StatsIncludeProductSales}, logger)
	catalogService := catalog.NewService(store, resolver, ledger, logger, cfg.AutoEnrollFree)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	routerCfg := api.RouterConfig{
		Resolver:    resolver,
		Ledger:      ledger,
		Revenue:     stats,
		Catalog:     catalogService,
		Verifier:    identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, logger),
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.OtelEnabled {
		routerCfg.ServiceName = cfg.OtelServiceName
	}
	api.InitRoutes(r, routerCfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Errorf("error trying to start server: %v", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	return logger
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (records.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := records.OpenPostgres(cfg.DatabaseURL, cfg.DBMaxOpenConns)
		if err != nil {
			return nil, err
		}
		store := records.NewGormStore(db, logger)
		return store, store.Migrate(ctx)
	case config.DriverSQLite:
		db, err := records.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store := records.NewGormStore(db, logger)
		return store, store.Migrate(ctx)
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		return records.NewLocalStorage(), nil
	}
}
