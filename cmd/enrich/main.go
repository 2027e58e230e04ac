package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"newspipe/internal/classifier"
	"newspipe/internal/config"
	"newspipe/internal/enrich"
	"newspipe/internal/repository"
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

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	repository.MigrateDB(db, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	timeout := time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second
	filter := repository.BacklogFilter{
		Channels:    cfg.Enrich.Channels,
		MinUnixTime: cfg.Enrich.MinUnixTime,
		MaxRows:     cfg.Enrich.MaxRows,
	}

	kinds := []struct {
		table      string
		classifier *classifier.Client
	}{
		{"message_sentiment", classifier.NewSentimentClassifier(cfg.Classifier.SentimentURL, timeout)},
		{"message_tag", classifier.NewTopicTagger(cfg.Classifier.TagURL, timeout)},
	}

	for _, kind := range kinds {
		if ctx.Err() != nil {
			return
		}

		store, err := repository.NewEnrichmentStore(db, logger, kind.table)
		if err != nil {
			logger.Fatal("Failed to create enrichment store", zap.Error(err))
		}

		enricher := enrich.NewEnricher(kind.classifier, store, filter, logger)
		report, err := enricher.Run(ctx)
		if err != nil {
			// One store kind failing must not block the other.
			logger.Error("Enrichment failed",
				zap.String("table", kind.table),
				zap.Int("selected", report.Selected),
				zap.Error(err))
			continue
		}

		logger.Info("Enrichment finished",
			zap.String("table", kind.table),
			zap.Int("selected", report.Selected),
			zap.Int("written", report.Written))
	}
}
