package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// SlackChannel uses Socket Mode, so no public webhook endpoint is needed.
type SlackChannel struct {
	*BaseChannel
	api    *slack.Client
	socket *socketmode.Client
	cancel context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, b *bus.MessageBus) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: bot_token and app_token are required")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", b, cfg.AllowFrom),
		api:         api,
		socket:      socketmode.New(api),
	}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("channel.slack", "Socket mode stopped", map[string]any{"error": err.Error()})
		}
		c.SetRunning(false)
	}()

	go c.consumeEvents(runCtx)

	c.SetRunning(true)
	logger.InfoC("channel.slack", "Slack channel started")
	return nil
}

func (c *SlackChannel) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				c.socket.Ack(*evt.Request)
			}

			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok {
				continue
			}
			// Skip bot echoes and message edits.
			if ev.BotID != "" || ev.SubType != "" || ev.Text == "" {
				continue
			}

			c.HandleMessage(ev.TimeStamp, ev.User, ev.Channel, ev.Text, map[string]string{
				"team_id": apiEvent.TeamID,
			})
		}
	}
}

func (c *SlackChannel) Stop(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.SetRunning(false)
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, _, err := c.api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("slack: sending to %s: %w", msg.ChatID, err)
	}
	return nil
}
