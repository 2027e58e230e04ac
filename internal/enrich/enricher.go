// Package enrich drives backlog selection, classification and score
// persistence, generic over which classifier/store pair is active.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"newspipe/internal/models"
	"newspipe/internal/repository"
)

// Classifier is the batch inference contract: one score distribution per
// input text, in input order, keyed by the store's column names.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]map[string]float64, error)
}

// Store pairs backlog selection with idempotent score upserts.
type Store interface {
	Table() string
	Backlog(ctx context.Context, f repository.BacklogFilter) ([]models.Message, error)
	Upsert(ctx context.Context, rows []models.ScoreRow) (int, error)
}

// Report summarizes one enrichment run.
type Report struct {
	Selected int
	Written  int
}

// Enricher fills one enrichment table from its backlog. Re-running is always
// safe: the backlog is recomputed from store state, so a prior partial
// success just shrinks the next run's work.
type Enricher struct {
	classifier Classifier
	store      Store
	filter     repository.BacklogFilter
	logger     *zap.Logger
}

func NewEnricher(classifier Classifier, store Store, filter repository.BacklogFilter, logger *zap.Logger) *Enricher {
	return &Enricher{
		classifier: classifier,
		store:      store,
		filter:     filter,
		logger:     logger,
	}
}

// Run selects the backlog, classifies it and upserts the scores. An empty
// backlog short-circuits before touching the classifier, so an idle run
// never warms an inference runtime for nothing.
func (e *Enricher) Run(ctx context.Context) (Report, error) {
	rows, err := e.store.Backlog(ctx, e.filter)
	if err != nil {
		return Report{}, fmt.Errorf("failed to select backlog: %w", err)
	}
	if len(rows) == 0 {
		e.logger.Info("Backlog is empty", zap.String("table", e.store.Table()))
		return Report{}, nil
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text
	}

	scores, err := e.classifier.Classify(ctx, texts)
	if err != nil {
		return Report{Selected: len(rows)}, fmt.Errorf("failed to classify backlog: %w", err)
	}
	if len(scores) != len(rows) {
		return Report{Selected: len(rows)}, fmt.Errorf(
			"classifier returned %d distributions for %d rows", len(scores), len(rows))
	}

	scored := make([]models.ScoreRow, len(rows))
	for i, row := range rows {
		scored[i] = models.ScoreRow{
			Channel: row.Channel,
			ID:      row.ID,
			Scores:  scores[i],
		}
	}

	written, err := e.store.Upsert(ctx, scored)
	if err != nil {
		return Report{Selected: len(rows)}, fmt.Errorf("failed to upsert scores: %w", err)
	}

	e.logger.Info("Backlog enriched",
		zap.String("table", e.store.Table()),
		zap.Int("selected", len(rows)),
		zap.Int("written", written))
	return Report{Selected: len(rows), Written: written}, nil
}
