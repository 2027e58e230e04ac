package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"newspipe/internal/models"
)

// scoreTables whitelists the enrichment tables and their required score
// columns. Anything else is a configuration error, never an empty result.
var scoreTables = map[string][]string{
	"message_sentiment": models.SentimentColumns,
	"message_tag":       models.TopicColumns,
}

// BacklogFilter narrows backlog selection. Zero values mean "no filter".
type BacklogFilter struct {
	Channels    []string
	MinUnixTime int64
	MaxRows     int64
}

// EnrichmentStore reads the backlog for and upserts scores into one
// enrichment table (message_sentiment or message_tag).
type EnrichmentStore struct {
	db      *sqlx.DB
	logger  *zap.Logger
	table   string
	columns []string
	upsert  string
	now     func() int64
}

// NewEnrichmentStore builds a store for the named table. The table must be
// one of the whitelisted enrichment tables.
func NewEnrichmentStore(db *sqlx.DB, logger *zap.Logger, table string) (*EnrichmentStore, error) {
	columns, ok := scoreTables[table]
	if !ok {
		return nil, fmt.Errorf("unknown enrichment table %q", table)
	}
	return &EnrichmentStore{
		db:      db,
		logger:  logger,
		table:   table,
		columns: columns,
		upsert:  buildUpsertQuery(table, columns),
		now:     func() int64 { return time.Now().Unix() },
	}, nil
}

// Table returns the destination table name.
func (s *EnrichmentStore) Table() string { return s.table }

// Columns returns the required score columns of the destination table.
func (s *EnrichmentStore) Columns() []string { return s.columns }

// buildUpsertQuery renders the per-row insert-or-replace statement. On
// conflict every score column is overwritten; created_at keeps the existing
// value unless the row explicitly supplies one. New rows without an explicit
// timestamp are stamped with the current time.
func buildUpsertQuery(table string, columns []string) string {
	insertCols := append([]string{"channel", "id"}, columns...)
	insertCols = append(insertCols, "created_at")

	placeholders := make([]string, 0, len(insertCols))
	for i := 1; i <= len(columns)+2; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	}
	createdAt := len(columns) + 3
	nowParam := len(columns) + 4
	placeholders = append(placeholders, fmt.Sprintf("COALESCE($%d, $%d)", createdAt, nowParam))

	updates := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, fmt.Sprintf("created_at = COALESCE($%d, %s.created_at)", createdAt, table))

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (channel, id) DO UPDATE SET %s",
		table,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

// validateRows rejects any row set that misses a required score column.
// Missing scores are reported, never silently zero-filled here: a short row
// means the classifier contract was broken upstream.
func validateRows(rows []models.ScoreRow, columns []string) error {
	for _, row := range rows {
		var missing []string
		for _, col := range columns {
			if _, ok := row.Scores[col]; !ok {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("row %s/%d is missing required score columns: %s",
				row.Channel, row.ID, strings.Join(missing, ", "))
		}
		if row.Channel == "" || row.ID <= 0 {
			return fmt.Errorf("row %q/%d has an invalid key", row.Channel, row.ID)
		}
	}
	return nil
}

// Upsert writes all rows in one transaction; the call either persists every
// row or none of them. Returns the number of rows written.
func (s *EnrichmentStore) Upsert(ctx context.Context, rows []models.ScoreRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := validateRows(rows, s.columns); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, row := range rows {
		args := make([]interface{}, 0, len(s.columns)+4)
		args = append(args, row.Channel, row.ID)
		for _, col := range s.columns {
			args = append(args, row.Scores[col])
		}
		args = append(args, row.CreatedAt, now)

		if _, err := tx.ExecContext(ctx, s.upsert, args...); err != nil {
			return 0, fmt.Errorf("failed to upsert %s row %s/%d: %w", s.table, row.Channel, row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s rows: %w", s.table, err)
	}
	return len(rows), nil
}

var messageColumns = []string{
	"m.channel", "m.id", "m.date_unix", "m.sender_id", "m.sender",
	"m.views", "m.forwards", "m.replies", "m.text",
}

func (s *EnrichmentStore) backlogBuilder(f BacklogFilter) sq.SelectBuilder {
	builder := sq.Select(messageColumns...).
		From("messages m").
		LeftJoin(s.table + " t ON t.channel = m.channel AND t.id = m.id").
		Where("t.channel IS NULL")

	if len(f.Channels) > 0 {
		builder = builder.Where(sq.Eq{"m.channel": f.Channels})
	}
	if f.MinUnixTime > 0 {
		builder = builder.Where(sq.GtOrEq{"m.date_unix": f.MinUnixTime})
	}
	return builder.PlaceholderFormat(sq.Dollar)
}

// Backlog returns the messages that have no row in this store's table yet,
// oldest first so long catch-ups make visible forward progress and a crash
// resumes at the oldest unprocessed message.
func (s *EnrichmentStore) Backlog(ctx context.Context, f BacklogFilter) ([]models.Message, error) {
	builder := s.backlogBuilder(f).OrderBy("m.date_unix ASC")
	if f.MaxRows > 0 {
		builder = builder.Limit(uint64(f.MaxRows))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build backlog query: %w", err)
	}

	var msgs []models.Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select %s backlog: %w", s.table, err)
	}
	return msgs, nil
}

// PendingCount reports the backlog size without loading the rows.
func (s *EnrichmentStore) PendingCount(ctx context.Context) (int64, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("messages m").
		LeftJoin(s.table + " t ON t.channel = m.channel AND t.id = m.id").
		Where("t.channel IS NULL").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build backlog count query: %w", err)
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s backlog: %w", s.table, err)
	}
	return count, nil
}
