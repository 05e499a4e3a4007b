package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// guildAdapter gives the cowboard commands access to guild channels and
// webhooks, preferring the gateway state cache over REST calls.
type guildAdapter struct {
	s *discordgo.Session
}

func (g guildAdapter) GuildChannels(guildID string) ([]*discordgo.Channel, error) {
	if guild, err := g.s.State.Guild(guildID); err == nil && len(guild.Channels) > 0 {
		return guild.Channels, nil
	}
	chans, err := g.s.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch channels for guild %s: %w", guildID, err)
	}
	return chans, nil
}

func (g guildAdapter) CreateWebhook(channelID, name string) (*discordgo.Webhook, error) {
	hook, err := g.s.WebhookCreate(channelID, name, "")
	if err != nil {
		return nil, fmt.Errorf("create webhook in %s: %w", channelID, err)
	}
	return hook, nil
}
