package telegram

import (
	"strconv"

	"github.com/gotd/td/tg"

	"newspipe/internal/models"
)

// row maps one Telegram message onto a database row. Text stays raw here;
// the ingestion pipeline normalizes it.
func row(channel string, msg *tg.Message, users map[int64]*tg.User) models.Message {
	m := models.Message{
		Channel:  channel,
		ID:       int64(msg.ID),
		DateUnix: int64(msg.Date), // already UTC seconds since epoch
		Text:     msg.Message,
	}

	if views, ok := msg.GetViews(); ok {
		m.Views = int64(views)
	}
	if forwards, ok := msg.GetForwards(); ok {
		m.Forwards = int64(forwards)
	}
	if replies, ok := msg.GetReplies(); ok {
		m.Replies = int64(replies.Replies)
	}

	if from, ok := msg.GetFromID(); ok {
		switch peer := from.(type) {
		case *tg.PeerUser:
			m.SenderID = strconv.FormatInt(peer.UserID, 10)
			if user, ok := users[peer.UserID]; ok {
				m.Sender = displayName(user)
			}
		case *tg.PeerChannel:
			m.SenderID = strconv.FormatInt(peer.ChannelID, 10)
		case *tg.PeerChat:
			m.SenderID = strconv.FormatInt(peer.ChatID, 10)
		}
	}
	if m.Sender == "" {
		if author, ok := msg.GetPostAuthor(); ok {
			m.Sender = author
		}
	}
	return m
}

func displayName(user *tg.User) string {
	if username, ok := user.GetUsername(); ok && username != "" {
		return username
	}
	if first, ok := user.GetFirstName(); ok {
		return first
	}
	return ""
}
