package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"newspipe/internal/api"
	"newspipe/internal/config"
	"newspipe/internal/ingest"
	"newspipe/internal/keywords"
	"newspipe/internal/repository"
	"newspipe/internal/telegram"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfgPath := "configs/config.yml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if len(cfg.Channels) == 0 {
		logger.Fatal("No channels configured")
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	repository.MigrateDB(db, logger)

	messageRepo := repository.NewMessageRepository(db, logger)
	sentimentStore, err := repository.NewEnrichmentStore(db, logger, "message_sentiment")
	if err != nil {
		logger.Fatal("Failed to create sentiment store", zap.Error(err))
	}
	tagStore, err := repository.NewEnrichmentStore(db, logger, "message_tag")
	if err != nil {
		logger.Fatal("Failed to create tag store", zap.Error(err))
	}

	kw, err := keywords.Load(cfg.KeywordsFile)
	if err != nil {
		logger.Fatal("Failed to load keywords", zap.Error(err))
	}
	if len(kw) == 0 {
		logger.Warn("No keywords loaded, keyword gate is open")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tgClient := telegram.NewClient(&cfg.Telegram, logger)

	apiServer := api.NewServer(tgClient, &statsProvider{
		messages: messageRepo,
		stores:   []*repository.EnrichmentStore{sentimentStore, tagStore},
	}, logger)
	go func() {
		if err := apiServer.Start(cfg.Server.Port); err != nil {
			logger.Error("API server stopped", zap.Error(err))
		}
	}()

	logger.Info("Starting Telegram client...")
	go func() {
		if err := tgClient.Run(ctx, cfg.Telegram.Phone); err != nil && ctx.Err() == nil {
			logger.Fatal("Telegram client failed", zap.Error(err))
		}
	}()

	logger.Info("Waiting for Telegram authentication...")
	select {
	case <-tgClient.AuthCompleted:
	case <-ctx.Done():
		return
	}

	ingestor := ingest.NewIngestor(
		tgClient,
		messageRepo,
		kw,
		time.Duration(cfg.Ingest.ChannelDelaySeconds)*time.Second,
		logger,
	)

	ingestor.Run(ctx, cfg.Channels)

	interval := time.Duration(cfg.Ingest.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return
		case <-ticker.C:
			ingestor.Run(ctx, cfg.Channels)
		}
	}
}

type statsProvider struct {
	messages repository.MessageRepository
	stores   []*repository.EnrichmentStore
}

func (s *statsProvider) MessageCount(ctx context.Context) (int64, error) {
	return s.messages.Count(ctx)
}

func (s *statsProvider) BacklogCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(s.stores))
	for _, store := range s.stores {
		pending, err := store.PendingCount(ctx)
		if err != nil {
			return nil, err
		}
		counts[store.Table()] = pending
	}
	return counts, nil
}
