package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/storage"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	if err := run(logger); err != nil {
		cli.Fatal(logger, "Worker error", err)
	}
	logger.InfoContext(context.Background(), "Worker stopped gracefully")
}

func run(logger *applog.Logger) error {
	cfg, err := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	audit := worker.NewAuditWorker(repo)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Consuming expense events",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue,
			"db_path", cfg.SQLiteDBPath)
		err := client.ConsumeWithRetry(gctx, audit.HandleEventMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
