package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/config"
	"github.com/finmen/healcoin-wallet/internal/logger"
	"github.com/finmen/healcoin-wallet/internal/outbox"
	"github.com/finmen/healcoin-wallet/internal/repo"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("kafka.brokers is required for the outbox poller")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// outbox only: no wallet cache
	repository := repo.NewRepository(gdb, nil, 0, log)
	pub := outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("wallet-poller started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	outbox.NewRelay(repository, pub, log, cfg.Outbox.BatchSize).Run(ctx, cfg.Outbox.PollInterval)
}
