package command

import (
	"github.com/bwmarrin/discordgo"
)

// MessageContext is what the runtime passes to a command. Both prefix messages
// and application command interactions arrive as a MessageCreate; for the
// latter the message is synthesized and its ID is the interaction ID.
type MessageContext struct {
	Session *discordgo.Session
	Event   *discordgo.MessageCreate
	Args    []string
	Chat    Chat
	// Prefix is the configured legacy prefix, used when a reply suggests a command.
	Prefix string
	// RequestID correlates the log lines of one dispatch.
	RequestID string
}

func (c *MessageContext) GuildID() string   { return c.Event.GuildID }
func (c *MessageContext) ChannelID() string { return c.Event.ChannelID }

// Author returns the invoking user, never nil.
func (c *MessageContext) Author() *discordgo.User {
	if c.Event.Author != nil {
		return c.Event.Author
	}
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}

// Say sends content to the invoking channel.
func (c *MessageContext) Say(content string) error {
	return c.Chat.Say(c.Event.ChannelID, content)
}

// Reply sends content as a reply to the invoking message.
func (c *MessageContext) Reply(content string) error {
	return c.Chat.Reply(c.Event.Message, content)
}

// Embed sends embed to the invoking channel.
func (c *MessageContext) Embed(embed *discordgo.MessageEmbed) error {
	return c.Chat.Embed(c.Event.ChannelID, embed)
}
