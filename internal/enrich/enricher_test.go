package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newspipe/internal/models"
	"newspipe/internal/repository"
)

type fakeClassifier struct {
	calls  int
	got    []string
	scores []map[string]float64
	err    error
}

func (c *fakeClassifier) Classify(_ context.Context, texts []string) ([]map[string]float64, error) {
	c.calls++
	c.got = texts
	if c.err != nil {
		return nil, c.err
	}
	return c.scores, nil
}

type fakeStore struct {
	backlog    []models.Message
	backlogErr error
	gotFilter  repository.BacklogFilter
	upserted   []models.ScoreRow
	upsertErr  error
}

func (s *fakeStore) Table() string { return "message_sentiment" }

func (s *fakeStore) Backlog(_ context.Context, f repository.BacklogFilter) ([]models.Message, error) {
	s.gotFilter = f
	return s.backlog, s.backlogErr
}

func (s *fakeStore) Upsert(_ context.Context, rows []models.ScoreRow) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserted = rows
	return len(rows), nil
}

func TestRunEmptyBacklogSkipsClassifier(t *testing.T) {
	cls := &fakeClassifier{}
	store := &fakeStore{}

	report, err := NewEnricher(cls, store, repository.BacklogFilter{}, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{}, report)
	assert.Zero(t, cls.calls)
}

func TestRunZipsScoresOntoRows(t *testing.T) {
	store := &fakeStore{backlog: []models.Message{
		{Channel: "A", ID: 101, Text: "first text"},
		{Channel: "B", ID: 7, Text: "second text"},
	}}
	cls := &fakeClassifier{scores: []map[string]float64{
		{"positive": 0.8, "neutral": 0.1, "negative": 0.1},
		{"positive": 0.1, "neutral": 0.2, "negative": 0.7},
	}}

	report, err := NewEnricher(cls, store, repository.BacklogFilter{}, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Selected: 2, Written: 2}, report)
	assert.Equal(t, []string{"first text", "second text"}, cls.got)

	require.Len(t, store.upserted, 2)
	assert.Equal(t, "A", store.upserted[0].Channel)
	assert.Equal(t, int64(101), store.upserted[0].ID)
	assert.InDelta(t, 0.8, store.upserted[0].Scores["positive"], 1e-9)
	assert.Equal(t, "B", store.upserted[1].Channel)
	assert.InDelta(t, 0.7, store.upserted[1].Scores["negative"], 1e-9)
	assert.Nil(t, store.upserted[0].CreatedAt)
}

func TestRunForwardsFilter(t *testing.T) {
	store := &fakeStore{}
	filter := repository.BacklogFilter{Channels: []string{"A"}, MinUnixTime: 1704063600, MaxRows: 50}

	_, err := NewEnricher(&fakeClassifier{}, store, filter, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filter, store.gotFilter)
}

func TestRunRejectsShortClassifierOutput(t *testing.T) {
	store := &fakeStore{backlog: []models.Message{
		{Channel: "A", ID: 1, Text: "a"},
		{Channel: "A", ID: 2, Text: "b"},
	}}
	cls := &fakeClassifier{scores: []map[string]float64{{"positive": 1}}}

	report, err := NewEnricher(cls, store, repository.BacklogFilter{}, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Empty(t, store.upserted)
}

func TestRunPropagatesClassifierError(t *testing.T) {
	store := &fakeStore{backlog: []models.Message{{Channel: "A", ID: 1, Text: "a"}}}
	cls := &fakeClassifier{err: errors.New("inference runtime down")}

	_, err := NewEnricher(cls, store, repository.BacklogFilter{}, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.upserted)
}

func TestRunPropagatesUpsertError(t *testing.T) {
	store := &fakeStore{
		backlog:   []models.Message{{Channel: "A", ID: 1, Text: "a"}},
		upsertErr: errors.New("missing required score columns"),
	}
	cls := &fakeClassifier{scores: []map[string]float64{{"positive": 1}}}

	report, err := NewEnricher(cls, store, repository.BacklogFilter{}, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Selected)
	assert.Zero(t, report.Written)
}
