package channels

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// LINEChannel receives events through a webhook mounted on the gateway's
// HTTP server (see WebhookHandler) and pushes replies via the Messaging
// API. The first message pushed to a recipient is prefixed with a greeting,
// matching the gateway's historical LINE behavior.
type LINEChannel struct {
	*BaseChannel
	api           *messaging_api.MessagingApiAPI
	channelSecret string

	mu      sync.Mutex
	greeted map[string]bool
}

func NewLINEChannel(cfg config.LINEConfig, b *bus.MessageBus) (*LINEChannel, error) {
	if cfg.ChannelSecret == "" || cfg.ChannelAccessToken == "" {
		return nil, fmt.Errorf("line: channel_secret and channel_access_token are required")
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("line: creating messaging API client: %w", err)
	}

	return &LINEChannel{
		BaseChannel:   NewBaseChannel("line", b, cfg.AllowFrom),
		api:           api,
		channelSecret: cfg.ChannelSecret,
		greeted:       make(map[string]bool),
	}, nil
}

// Start only flips the running flag: inbound traffic arrives through the
// webhook handler, which the gateway HTTP server mounts.
func (c *LINEChannel) Start(_ context.Context) error {
	c.SetRunning(true)
	logger.InfoC("channel.line", "LINE channel started (webhook mode)")
	return nil
}

func (c *LINEChannel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return nil
}

// WebhookHandler verifies the LINE signature and normalizes text message
// events onto the bus. Non-message and non-text events are acknowledged
// and ignored.
func (c *LINEChannel) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cb, err := webhook.ParseRequest(c.channelSecret, r)
		if err != nil {
			logger.WarnCF("channel.line", "Webhook parse failed", map[string]any{"error": err.Error()})
			if err == webhook.ErrInvalidSignature {
				w.WriteHeader(http.StatusBadRequest)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		for _, event := range cb.Events {
			msgEvent, ok := event.(webhook.MessageEvent)
			if !ok {
				continue
			}
			text, ok := msgEvent.Message.(webhook.TextMessageContent)
			if !ok || text.Text == "" {
				continue
			}

			chatID, senderID := sourceIDs(msgEvent.Source)
			if chatID == "" {
				logger.WarnC("channel.line", "Message event without a usable source, skipping")
				continue
			}

			c.HandleMessage(text.Id, senderID, chatID, text.Text, nil)
		}

		w.WriteHeader(http.StatusOK)
	})
}

// sourceIDs extracts the reply target and sender. Group and room messages
// reply to the group/room; direct messages reply to the user.
func sourceIDs(source webhook.SourceInterface) (chatID, senderID string) {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId, s.UserId
	case webhook.GroupSource:
		return s.GroupId, s.UserId
	case webhook.RoomSource:
		return s.RoomId, s.UserId
	}
	return "", ""
}

func (c *LINEChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	content := msg.Content
	if greeting := c.greetingFor(msg.ChatID); greeting != "" {
		content = greeting + content
	}

	_, err := c.api.PushMessage(&messaging_api.PushMessageRequest{
		To: msg.ChatID,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: content},
		},
	}, "")
	if err != nil {
		return fmt.Errorf("line: pushing to %s: %w", msg.ChatID, err)
	}
	return nil
}

// greetingFor returns the first-contact greeting exactly once per
// recipient, resolving the display name when the recipient is a user.
func (c *LINEChannel) greetingFor(to string) string {
	c.mu.Lock()
	if c.greeted[to] {
		c.mu.Unlock()
		return ""
	}
	c.greeted[to] = true
	c.mu.Unlock()

	name := "User"
	if profile, err := c.api.GetProfile(to); err == nil && profile.DisplayName != "" {
		name = profile.DisplayName
	}
	return fmt.Sprintf("Hi, %s\n", name)
}
