package command

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0xb01e66

// Chat is the reply surface handlers talk to.
type Chat interface {
	Say(channelID, content string) error
	Reply(m *discordgo.Message, content string) error
	Embed(channelID string, embed *discordgo.MessageEmbed) error
}

// Sender is the subset of *discordgo.Session used by SessionChat.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// SessionChat sends replies through the Discord REST API.
type SessionChat struct {
	S Sender
}

func NewSessionChat(s Sender) *SessionChat {
	return &SessionChat{S: s}
}

func (c *SessionChat) Say(channelID, content string) error {
	if _, err := c.S.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return nil
}

// Reply references m without failing when it does not exist, which is the
// case for messages synthesized from interactions.
func (c *SessionChat) Reply(m *discordgo.Message, content string) error {
	if _, err := c.S.ChannelMessageSendReply(m.ChannelID, content, m.SoftReference()); err != nil {
		return fmt.Errorf("reply in %s: %w", m.ChannelID, err)
	}
	return nil
}

func (c *SessionChat) Embed(channelID string, embed *discordgo.MessageEmbed) error {
	if embed.Color == 0 {
		embed.Color = EmbedColor
	}
	if _, err := c.S.ChannelMessageSendEmbed(channelID, embed); err != nil {
		return fmt.Errorf("send embed to %s: %w", channelID, err)
	}
	return nil
}
