package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newspipe/internal/models"
)

type fakeSource struct {
	messages map[string][]models.Message
	errs     map[string][]error
	calls    map[string]int
	minIDs   map[string][]int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages: make(map[string][]models.Message),
		errs:     make(map[string][]error),
		calls:    make(map[string]int),
		minIDs:   make(map[string][]int64),
	}
}

func (s *fakeSource) Messages(_ context.Context, channel string, minID int64) ([]models.Message, error) {
	s.calls[channel]++
	s.minIDs[channel] = append(s.minIDs[channel], minID)
	if queued := s.errs[channel]; len(queued) > 0 {
		err := queued[0]
		s.errs[channel] = queued[1:]
		return nil, err
	}
	return s.messages[channel], nil
}

type fakeStore struct {
	cursors map[string]int64
	seen    map[string]bool
	rows    []models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{cursors: make(map[string]int64), seen: make(map[string]bool)}
}

func (s *fakeStore) LastSavedID(_ context.Context, channel string) (int64, error) {
	return s.cursors[channel], nil
}

func (s *fakeStore) InsertMessages(_ context.Context, msgs []models.Message) (int64, error) {
	var inserted int64
	for _, msg := range msgs {
		key := fmt.Sprintf("%s/%d", msg.Channel, msg.ID)
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.rows = append(s.rows, msg)
		if msg.ID > s.cursors[msg.Channel] {
			s.cursors[msg.Channel] = msg.ID
		}
		inserted++
	}
	return inserted, nil
}

func newIngestor(source Source, store Store, kw []string) *Ingestor {
	return NewIngestor(source, store, kw, 0, zap.NewNop())
}

func TestIngestChannelFiltersBeforeInsert(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	store.cursors["A"] = 100
	source.messages["A"] = []models.Message{
		{Channel: "A", ID: 101, Text: "ok text"},
		{Channel: "A", ID: 102, Text: ""},
		{Channel: "A", ID: 103, Text: "nolinktoken"},
	}

	report, err := newIngestor(source, store, nil).IngestChannel(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, Report{Fetched: 3, Inserted: 1}, report)
	// The filtered rows never reached the store, so the cursor advances only
	// to the surviving message.
	assert.Equal(t, int64(101), store.cursors["A"])
	assert.Equal(t, []int64{100}, source.minIDs["A"])
}

func TestIngestChannelReinsertIsNoop(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	source.messages["A"] = []models.Message{{Channel: "A", ID: 1, Text: "first run text"}}

	ing := newIngestor(source, store, nil)
	first, err := ing.IngestChannel(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	// Simulate a re-fetch of an already stored id.
	store.cursors["A"] = 0
	second, err := ing.IngestChannel(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Len(t, store.rows, 1)
}

func TestIngestChannelNormalizesText(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	source.messages["A"] = []models.Message{{Channel: "A", ID: 1, Text: "some   padded\ttext  "}}

	_, err := newIngestor(source, store, nil).IngestChannel(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "some padded text", store.rows[0].Text)
}

func TestIngestChannelAppliesKeywordGate(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	source.messages["A"] = []models.Message{
		{Channel: "A", ID: 1, Text: "markets are up"},
		{Channel: "A", ID: 2, Text: "weather is nice"},
	}

	report, err := newIngestor(source, store, []string{"markets"}).IngestChannel(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, Report{Fetched: 2, Inserted: 1}, report)
}

func TestIngestChannelRetriesAfterFloodWait(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	source.errs["A"] = []error{&FloodWaitError{Wait: time.Millisecond}}
	source.messages["A"] = []models.Message{{Channel: "A", ID: 5, Text: "after the wait"}}

	report, err := newIngestor(source, store, nil).IngestChannel(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls["A"])
	assert.Equal(t, Report{Fetched: 1, Inserted: 1}, report)
	// Both attempts resumed from the same cursor.
	assert.Equal(t, []int64{0, 0}, source.minIDs["A"])
}

func TestRunIsolatesChannelFailures(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	store.cursors["B"] = 7
	source.errs["B"] = []error{fmt.Errorf("%w: CHANNEL_PRIVATE", ErrChannelUnavailable)}
	source.messages["C"] = []models.Message{{Channel: "C", ID: 1, Text: "still processed"}}

	newIngestor(source, store, nil).Run(context.Background(), []string{"B", "C"})

	// B is skipped with its cursor untouched; C is processed in the same run.
	assert.Equal(t, int64(7), store.cursors["B"])
	assert.Equal(t, int64(1), store.cursors["C"])
	assert.Len(t, store.rows, 1)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	source := newFakeSource()
	store := newFakeStore()
	source.messages["A"] = []models.Message{{Channel: "A", ID: 1, Text: "never stored"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source.errs["A"] = []error{&FloodWaitError{Wait: time.Hour}}

	newIngestor(source, store, nil).Run(ctx, []string{"A", "C"})
	assert.Zero(t, source.calls["C"])
	assert.Empty(t, store.rows)
}
