// Package ingest drives the per-channel fetch, filter and persist workflow.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"newspipe/internal/keywords"
	"newspipe/internal/models"
	"newspipe/internal/textutil"
)

// ErrChannelUnavailable marks a permanent source-side failure: the channel is
// private, deleted or the name is invalid. Such channels are skipped for the
// rest of the run, never retried.
var ErrChannelUnavailable = errors.New("channel is not accessible")

// FloodWaitError is the source's rate-limit signal. The orchestrator pauses
// the affected channel for Wait and resumes from the same cursor; other
// channels are unaffected.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("rate limited for %s", e.Wait)
}

// Source yields channel messages with id > minID, ascending by id.
type Source interface {
	Messages(ctx context.Context, channel string, minID int64) ([]models.Message, error)
}

// Store is the slice of the message repository the ingestor needs.
type Store interface {
	LastSavedID(ctx context.Context, channel string) (int64, error)
	InsertMessages(ctx context.Context, msgs []models.Message) (int64, error)
}

// Report summarizes one channel's ingestion. The gap between Fetched and
// Inserted is filter attrition plus already-seen rows.
type Report struct {
	Fetched  int
	Inserted int
}

// Ingestor catches each configured channel up to the source's head.
type Ingestor struct {
	source       Source
	store        Store
	keywords     []string
	channelDelay time.Duration
	logger       *zap.Logger
}

func NewIngestor(source Source, store Store, kw []string, channelDelay time.Duration, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		source:       source,
		store:        store,
		keywords:     kw,
		channelDelay: channelDelay,
		logger:       logger,
	}
}

// Run processes channels sequentially. A channel's failure is isolated: it is
// logged and the run moves on to the next channel.
func (i *Ingestor) Run(ctx context.Context, channels []string) {
	for n, channel := range channels {
		report, err := i.IngestChannel(ctx, channel)
		switch {
		case errors.Is(err, ErrChannelUnavailable):
			i.logger.Warn("Channel skipped", zap.String("channel", channel), zap.Error(err))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			i.logger.Info("Ingestion cancelled", zap.String("channel", channel))
			return
		case err != nil:
			i.logger.Error("Channel failed", zap.String("channel", channel), zap.Error(err))
		default:
			i.logger.Info("Channel ingested",
				zap.String("channel", channel),
				zap.Int("fetched", report.Fetched),
				zap.Int("inserted", report.Inserted))
		}

		// Space out channels to stay under the source's rate limits.
		if n < len(channels)-1 && i.channelDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(i.channelDelay):
			}
		}
	}
}

// IngestChannel fetches everything newer than the channel's cursor, shapes
// the rows and persists them. A rate-limit signal pauses and retries this
// channel only; the cursor is untouched by the pause.
func (i *Ingestor) IngestChannel(ctx context.Context, channel string) (Report, error) {
	lastID, err := i.store.LastSavedID(ctx, channel)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read cursor: %w", err)
	}

	var msgs []models.Message
	for {
		msgs, err = i.source.Messages(ctx, channel, lastID)
		if err == nil {
			break
		}

		var floodWait *FloodWaitError
		if !errors.As(err, &floodWait) {
			return Report{}, err
		}

		i.logger.Info("Rate limited, waiting",
			zap.String("channel", channel),
			zap.Duration("wait", floodWait.Wait))
		select {
		case <-ctx.Done():
			return Report{}, ctx.Err()
		case <-time.After(floodWait.Wait):
		}
	}

	rows := i.shapeRows(channel, msgs)
	rows = keywords.Filter(rows, i.keywords)

	inserted, err := i.store.InsertMessages(ctx, rows)
	if err != nil {
		return Report{}, fmt.Errorf("failed to insert messages: %w", err)
	}

	return Report{Fetched: len(msgs), Inserted: int(inserted)}, nil
}

// shapeRows normalizes text and applies the pre-filter: rows that end up
// empty or carry no whitespace at all (bare links, single tokens) are
// dropped. Ascending source order is assumed, not trusted: violations are
// logged rather than silently accepted.
func (i *Ingestor) shapeRows(channel string, msgs []models.Message) []models.Message {
	rows := make([]models.Message, 0, len(msgs))
	var prevID int64
	for _, msg := range msgs {
		if msg.ID <= prevID && prevID != 0 {
			i.logger.Warn("Source violated ascending id order",
				zap.String("channel", channel),
				zap.Int64("id", msg.ID),
				zap.Int64("previous_id", prevID))
		}
		if msg.ID > prevID {
			prevID = msg.ID
		}

		msg.Text = textutil.Normalize(msg.Text)
		if msg.Text == "" || !strings.ContainsFunc(msg.Text, isWhitespace) {
			continue
		}
		rows = append(rows, msg)
	}
	return rows
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
