// Package telegram wraps the MTProto client and adapts it to the ingestion
// source contract.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"newspipe/internal/config"
	"newspipe/internal/ingest"
	"newspipe/internal/models"
)

const historyPageSize = 100

// Client encapsulates the Telegram client.
type Client struct {
	*telegram.Client
	AuthCode      chan string   // Channel to receive the login code
	AuthCompleted chan struct{} // Closed once authentication finishes
	logger        *zap.Logger
	peers         map[string]*tg.InputPeerChannel
}

// NewClient creates and initializes a new Telegram client.
func NewClient(cfg *config.TelegramConfig, logger *zap.Logger) *Client {
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		Logger:         logger.Named("td"),
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})

	return &Client{
		Client:        client,
		AuthCode:      make(chan string),
		AuthCompleted: make(chan struct{}),
		logger:        logger,
		peers:         make(map[string]*tg.InputPeerChannel),
	}
}

// Run starts the Telegram client and handles authentication. It blocks until
// ctx is cancelled.
func (c *Client) Run(ctx context.Context, phone string) error {
	return c.Client.Run(ctx, func(ctx context.Context) error {
		if err := c.auth(ctx, phone); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		c.logger.Info("Telegram client started and authenticated")
		close(c.AuthCompleted)

		<-ctx.Done()
		return ctx.Err()
	})
}

func (c *Client) auth(ctx context.Context, phone string) error {
	flow := auth.NewFlow(
		auth.Constant(phone, "", auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
			c.logger.Info("Waiting for authentication code via API...")
			select {
			case code := <-c.AuthCode:
				return strings.TrimSpace(code), nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})),
		auth.SendCodeOptions{},
	)

	return flow.Run(ctx, c.Client.Auth())
}

// Messages fetches all channel messages with id > minID, ascending by id.
// Rate limiting and permanent access errors are translated into the
// ingestion error taxonomy.
func (c *Client) Messages(ctx context.Context, channel string, minID int64) ([]models.Message, error) {
	peer, err := c.resolve(ctx, channel)
	if err != nil {
		return nil, err
	}

	var (
		collected []models.Message
		users     = make(map[int64]*tg.User)
		offsetID  int
	)
	for {
		history, err := c.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			MinID:    int(minID),
			Limit:    historyPageSize,
		})
		if err != nil {
			return nil, translateErr(err)
		}

		batch, batchUsers, err := splitHistory(history)
		if err != nil {
			return nil, err
		}
		for _, u := range batchUsers {
			if user, ok := u.(*tg.User); ok {
				users[user.ID] = user
			}
		}

		for _, cls := range batch {
			msg, ok := cls.(*tg.Message)
			if !ok {
				continue
			}
			offsetID = msg.ID
			if int64(msg.ID) <= minID {
				continue
			}
			collected = append(collected, row(channel, msg, users))
		}

		if len(batch) < historyPageSize {
			break
		}
	}

	// History pages run newest to oldest; the orchestrator wants ascending.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// resolve turns a channel reference (https://t.me/name, @name or bare name)
// into an input peer, caching the access hash per run.
func (c *Client) resolve(ctx context.Context, channel string) (tg.InputPeerClass, error) {
	username := channelUsername(channel)
	if peer, ok := c.peers[username]; ok {
		return peer, nil
	}

	resolved, err := c.API().ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, translateErr(err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
			c.peers[username] = peer
			return peer, nil
		}
	}
	return nil, fmt.Errorf("%w: %q did not resolve to a channel", ingest.ErrChannelUnavailable, channel)
}

func channelUsername(channel string) string {
	name := strings.TrimSpace(channel)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/", "@"} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	return strings.TrimSuffix(name, "/")
}

func splitHistory(history tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass, error) {
	switch h := history.(type) {
	case *tg.MessagesChannelMessages:
		return h.Messages, h.Users, nil
	case *tg.MessagesMessagesSlice:
		return h.Messages, h.Users, nil
	case *tg.MessagesMessages:
		return h.Messages, h.Users, nil
	default:
		return nil, nil, fmt.Errorf("unexpected history response %T", history)
	}
}

func translateErr(err error) error {
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &ingest.FloodWaitError{Wait: wait}
	}
	if tgerr.Is(err, "CHANNEL_PRIVATE", "CHANNEL_INVALID", "USERNAME_INVALID", "USERNAME_NOT_OCCUPIED") {
		return fmt.Errorf("%w: %v", ingest.ErrChannelUnavailable, err)
	}
	return err
}
