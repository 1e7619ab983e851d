package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"docsage/internal/app"
	"docsage/internal/config"
	"docsage/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	application, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log)
	if err != nil {
		return fmt.Errorf("app init failed: %w", err)
	}
	defer application.Close()

	if cfg.EnableReindexWorker {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxMsgSize = int32(cfg.NSQMaxMsgSize)

		consumer, err := nsq.NewConsumer(config.TopicReindex, "backend", nsqCfg)
		if err != nil {
			return fmt.Errorf("nsq consumer error: %w", err)
		}
		consumer.AddHandler(application.ReindexConsumer)

		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Warn("failed to connect to nsqlookupd, trying nsqd directly", "error", err)
			if err := consumer.ConnectToNSQD(cfg.NSQDHost); err != nil {
				return fmt.Errorf("nsq consumer connect error: %w", err)
			}
		}
		defer consumer.Stop()
		slog.Info("reindex worker started", "topic", config.TopicReindex)
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		<-ctx.Done()
		return nil
	}

	return application.Run(ctx)
}
