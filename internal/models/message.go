package models

// Message is a single harvested channel post. (channel, id) is the primary
// key; id is assigned by Telegram and grows per channel.
type Message struct {
	Channel  string `db:"channel" json:"channel"`
	ID       int64  `db:"id" json:"id"`
	DateUnix int64  `db:"date_unix" json:"date_unix"`
	SenderID string `db:"sender_id" json:"sender_id"`
	Sender   string `db:"sender" json:"sender"`
	Views    int64  `db:"views" json:"views"`
	Forwards int64  `db:"forwards" json:"forwards"`
	Replies  int64  `db:"replies" json:"replies"`
	Text     string `db:"text" json:"text"`
}

// ScoreRow carries one classified message's score distribution, keyed by the
// destination table's column names. CreatedAt is optional; when nil the store
// keeps an existing row's timestamp and stamps new rows with the current time.
type ScoreRow struct {
	Channel   string
	ID        int64
	Scores    map[string]float64
	CreatedAt *int64
}
