package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/config"
	"github.com/finmen/healcoin-wallet/internal/logger"
	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/repo"
	"github.com/finmen/healcoin-wallet/internal/service"
	httptransport "github.com/finmen/healcoin-wallet/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// amounts go out as JSON numbers in responses, cache entries and events
	decimal.MarshalJSONWithoutQuotes = true

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	maxCredit := decimal.Zero
	if cfg.Ledger.MaxCreditAmount != "" {
		maxCredit, err = decimal.NewFromString(cfg.Ledger.MaxCreditAmount)
		if err != nil {
			log.Fatalf("parse ledger.max_credit_amount: %v", err)
		}
	}

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := repo.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. repo & services
	m := metrics.New()
	repository := repo.NewRepository(gdb, rdb, cfg.Redis.CacheTTL, log)
	wallets := service.NewWalletService(repository, log, service.Options{Metrics: m, MaxCredit: maxCredit})
	redemptions := service.NewRedemptionService(repository, log, m)

	// 6. gin router
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.Deps{
		Wallets:     wallets,
		Redemptions: redemptions,
		Metrics:     m,
		Log:         log,
		RateLimit:   cfg.RateLimit,
		JWTSecret:   cfg.Auth.JWTSecret,
	})

	// 7. serve until SIGINT/SIGTERM
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Infof("wallet-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down wallet-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("forced shutdown: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Warnf("close redis: %v", err)
	}
	log.Info("wallet-server stopped")
}
