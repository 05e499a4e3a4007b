package storagetypes

import (
	"time"
)

// Default values for a freshly created cowboard record.
const (
	DefaultEmote           = "🐮"
	DefaultAddThreshold    = 5
	DefaultRemoveThreshold = 3
)

// Cowboard is the per-guild cowboard configuration.
type Cowboard struct {
	GuildID         string  `json:"guild_id"`
	Emote           string  `json:"emote"`
	Channel         *string `json:"channel,omitempty"`
	AddThreshold    int     `json:"add_threshold"`
	RemoveThreshold int     `json:"remove_threshold"`
	WebhookID       *string `json:"webhook_id,omitempty"`
	WebhookToken    *string `json:"webhook_token,omitempty"`
}

// NewCowboard returns the default record for a guild.
func NewCowboard(guildID string) *Cowboard {
	return &Cowboard{
		GuildID:         guildID,
		Emote:           DefaultEmote,
		AddThreshold:    DefaultAddThreshold,
		RemoveThreshold: DefaultRemoveThreshold,
	}
}

// HasWebhook reports whether both halves of the webhook credential are set.
func (c *Cowboard) HasWebhook() bool {
	return c.WebhookID != nil && c.WebhookToken != nil
}

// SetWebhook stores a webhook credential.
func (c *Cowboard) SetWebhook(id, token string) {
	c.WebhookID = &id
	c.WebhookToken = &token
}

// ClearWebhook drops the webhook credential.
func (c *Cowboard) ClearWebhook() {
	c.WebhookID = nil
	c.WebhookToken = nil
}

type CommandHistory struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Datetime  time.Time `json:"datetime"`
}
