package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/homeclaw/pkg/bus"
	"github.com/tinyland-inc/homeclaw/pkg/config"
	"github.com/tinyland-inc/homeclaw/pkg/logger"
)

// DiscordChannel bridges Discord guild and DM text messages.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
}

func NewDiscordChannel(cfg config.DiscordConfig, b *bus.MessageBus) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", b, cfg.AllowFrom),
		session:     session,
	}, nil
}

func (c *DiscordChannel) Start(_ context.Context) error {
	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.Content == "" {
			return
		}

		senderID := m.Author.ID
		if m.Author.Username != "" {
			senderID += "|" + m.Author.Username
		}

		c.HandleMessage(m.ID, senderID, m.ChannelID, m.Content, map[string]string{
			"guild_id": m.GuildID,
		})
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway connection: %w", err)
	}

	c.SetRunning(true)
	logger.InfoC("channel.discord", "Discord channel started")
	return nil
}

func (c *DiscordChannel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *DiscordChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if _, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content); err != nil {
		return fmt.Errorf("discord: sending to %s: %w", msg.ChatID, err)
	}
	return nil
}
