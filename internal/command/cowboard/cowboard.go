// Package cowboard implements the cowboard configuration commands.
package cowboard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"moobot/internal/command"
	st "moobot/internal/storagetypes"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// WebhookName is the name given to webhooks created for the cowboard channel.
const WebhookName = "Cowboard"

const (
	msgReadFailed   = "We couldn't get the cowboard settings... try again later?"
	msgUpdateFailed = "We couldn't update the cowboard, sorry... Try again later?"
	msgInvalidNum   = "The given value is not a valid number."
)

// Store is the part of the settings store the cowboard commands need.
type Store interface {
	CowboardConfig(guildID string) (*st.Cowboard, error)
	UpdateCowboard(cfg *st.Cowboard) error
}

// Guilds resolves guild channels and creates webhooks.
type Guilds interface {
	GuildChannels(guildID string) ([]*discordgo.Channel, error)
	CreateWebhook(channelID, name string) (*discordgo.Webhook, error)
}

type CowboardCommand struct {
	Store  Store
	Guilds Guilds
}

func (c *CowboardCommand) Name() string { return "cowboard" }
func (c *CowboardCommand) Description() string {
	return "Configure the cowboard for this server"
}
func (c *CowboardCommand) Category() string         { return "🐮 Cowboard" }
func (c *CowboardCommand) UserPermissions() []int64 { return []int64{} }
func (c *CowboardCommand) GuildOnly() bool          { return true }

// PermissionsFor requires Administrator for every subcommand except info.
func (c *CowboardCommand) PermissionsFor(args []string) []int64 {
	if len(args) == 0 {
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "emote", "addthreshold", "removethreshold", "channel", "webhook":
		return []int64{discordgo.PermissionAdministrator}
	}
	return nil
}

func (c *CowboardCommand) SlashDefinition() *discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Get the current settings for the cowboard",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "emote",
				Description: "Set the emote reaction that triggers a cowboard message",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emote",
					Description: "A server emote or a default Discord emoji",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "addthreshold",
				Description: "Minimum reactions to post a message to the cowboard",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "A positive number, not below the removal threshold",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "removethreshold",
				Description: "Maximum reactions before a message is removed from the cowboard",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "Zero or a positive number, not above the add threshold",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "channel",
				Description: "Set the cowboard channel (defaults to this one)",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "webhook",
				Description: "Toggle webhook posting for the cowboard channel",
			},
		},
	}
}

func (c *CowboardCommand) Run(ctx interface{}) error {
	mc, ok := ctx.(*command.MessageContext)
	if !ok {
		return nil
	}

	sub, args := "info", mc.Args
	if len(args) > 0 {
		sub, args = strings.ToLower(args[0]), args[1:]
	}

	switch sub {
	case "info":
		return c.info(mc)
	case "emote":
		return c.emote(mc, args)
	case "addthreshold":
		return c.addThreshold(mc, args)
	case "removethreshold":
		return c.removeThreshold(mc, args)
	case "channel":
		return c.channel(mc, args)
	case "webhook":
		return c.webhook(mc)
	default:
		return mc.Say(fmt.Sprintf("Unknown subcommand `%s`. Try one of: `info`, `emote`, `addthreshold`, `removethreshold`, `channel`, `webhook`.", sub))
	}
}

func (c *CowboardCommand) info(mc *command.MessageContext) error {
	cfg, err := c.Store.CowboardConfig(mc.GuildID())
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to get cowboard")
		return mc.Say("Failed to fetch Cowboard settings for this server...")
	}

	channel := "No Cowboard Channel"
	if cfg.Channel != nil {
		channel = fmt.Sprintf("<#%s>", *cfg.Channel)
	}
	webhook := "Disabled"
	if cfg.HasWebhook() {
		webhook = "Enabled"
	}

	return mc.Embed(&discordgo.MessageEmbed{
		Title:       "Cowboard Settings",
		Description: "If the emote doesn't display properly below, you probably want to use a different one!",
		Color:       command.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Emote", Value: cfg.Emote, Inline: true},
			{Name: "Raw Emote", Value: mono(cfg.Emote), Inline: true},
			{Name: "Channel", Value: channel, Inline: true},
			{Name: "Add Threshold", Value: mono(strconv.Itoa(cfg.AddThreshold)), Inline: true},
			{Name: "Remove Threshold", Value: mono(strconv.Itoa(cfg.RemoveThreshold)), Inline: true},
			{Name: "Webhook", Value: webhook, Inline: true},
		},
	})
}

func (c *CowboardCommand) emote(mc *command.MessageContext, args []string) error {
	if len(args) == 0 {
		return mc.Say("You need to pass an emote to this command, like :cow:.")
	}

	emote, ok := ParseEmote(args[0])
	if !ok {
		return mc.Say("Failed to process an emote from the given message...")
	}

	return c.update(mc, func(cfg *st.Cowboard) (string, bool) {
		cfg.Emote = emote
		return "Successfully updated emote!", true
	})
}

func (c *CowboardCommand) addThreshold(mc *command.MessageContext, args []string) error {
	if len(args) == 0 {
		return mc.Say("You need to pass in a positive number for the minimum amount of reactions.")
	}

	n, err := parseCount(args[0])
	if err != nil {
		return mc.Say(msgInvalidNum)
	}
	if n <= 0 {
		return mc.Say("The given number must be positive.")
	}

	return c.update(mc, func(cfg *st.Cowboard) (string, bool) {
		if n < cfg.RemoveThreshold {
			return fmt.Sprintf("The minimum number of reactions required to add must be greater than or equal to the removal limit (currently set to %d).", cfg.RemoveThreshold), false
		}
		cfg.AddThreshold = n
		return "Successfully updated minimum add threshold!", true
	})
}

func (c *CowboardCommand) removeThreshold(mc *command.MessageContext, args []string) error {
	if len(args) == 0 {
		return mc.Say("You need to pass in a positive number (or zero) for the removal reaction count.")
	}

	n, err := parseCount(args[0])
	if err != nil {
		return mc.Say(msgInvalidNum)
	}
	if n < 0 {
		return mc.Say("The given number must be positive or zero.")
	}

	return c.update(mc, func(cfg *st.Cowboard) (string, bool) {
		if n > cfg.AddThreshold {
			return fmt.Sprintf("The maximum number of reactions required to remove must be less than or equal to the add limit (currently set to %d).", cfg.AddThreshold), false
		}
		cfg.RemoveThreshold = n
		return "Successfully updated maximum removal threshold!", true
	})
}

func (c *CowboardCommand) channel(mc *command.MessageContext, args []string) error {
	channelID := mc.ChannelID()
	if len(args) > 0 {
		id, ok := ParseChannelID(args[0])
		if !ok {
			return mc.Say("Could not get a channel from your input!")
		}
		channelID = id
	}

	channels, err := c.Guilds.GuildChannels(mc.GuildID())
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to get guild channels")
	}
	if findChannel(channels, channelID) == nil {
		return mc.Say("Could not find channel in this server!")
	}

	return c.update(mc, func(cfg *st.Cowboard) (string, bool) {
		cfg.Channel = &channelID
		cfg.ClearWebhook()
		return fmt.Sprintf("Successfully updated channel! You may want to check webhooks; try using `%scowboard webhook` to enable it.", mc.Prefix), true
	})
}

func (c *CowboardCommand) webhook(mc *command.MessageContext) error {
	cfg, err := c.Store.CowboardConfig(mc.GuildID())
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to get cowboard")
		return mc.Say(msgReadFailed)
	}
	if cfg.Channel == nil {
		return mc.Say("Cowboard channel is not set up!")
	}
	channelID := *cfg.Channel

	channels, err := c.Guilds.GuildChannels(mc.GuildID())
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to get guild channels")
		return mc.Say("We couldn't find the channels in this server, maybe we don't have permissions?")
	}
	if findChannel(channels, channelID) == nil {
		return mc.Say(fmt.Sprintf("We don't have access to <#%s>... maybe it's hidden for us?", channelID))
	}

	if cfg.HasWebhook() {
		cfg.ClearWebhook()
	} else {
		hook, err := c.Guilds.CreateWebhook(channelID, WebhookName)
		if err != nil {
			log.Error().Err(err).Str("guild", mc.GuildID()).Str("channel", channelID).Msg("Failed to create webhook")
			return mc.Say(fmt.Sprintf("Failed to add webhook; maybe I do not have permissions for the channel <#%s>?", channelID))
		}
		cfg.SetWebhook(hook.ID, hook.Token)
	}

	if err := c.Store.UpdateCowboard(cfg); err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to update cowboard")
		return mc.Say(msgUpdateFailed)
	}
	if cfg.HasWebhook() {
		return mc.Say(fmt.Sprintf("Enabled webhooks for <#%s>.", channelID))
	}
	return mc.Say(fmt.Sprintf("Disabled webhooks for <#%s>.", channelID))
}

// update reads the guild record, applies mutate and persists it when mutate
// accepts the change. The returned message is sent either way.
func (c *CowboardCommand) update(mc *command.MessageContext, mutate func(cfg *st.Cowboard) (string, bool)) error {
	cfg, err := c.Store.CowboardConfig(mc.GuildID())
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to get cowboard")
		return mc.Say(msgReadFailed)
	}

	reply, ok := mutate(cfg)
	if !ok {
		return mc.Say(reply)
	}

	if err := c.Store.UpdateCowboard(cfg); err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Msg("Failed to update cowboard")
		return mc.Say(msgUpdateFailed)
	}
	return mc.Say(reply)
}

var (
	customEmoteRe = regexp.MustCompile(`^<(a?):([A-Za-z0-9_]{2,32}):(\d{15,21})>$`)
	channelRe     = regexp.MustCompile(`^<#(\d{15,21})>$`)
	snowflakeRe   = regexp.MustCompile(`^\d{15,21}$`)
)

// ParseEmote accepts a custom emote (<:name:id> or <a:name:id>) or a unicode
// emoji and returns its canonical form.
func ParseEmote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := customEmoteRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("<%s:%s:%s>", m[1], m[2], m[3]), true
	}
	if s == "" || strings.ContainsAny(s, "<>:") {
		return "", false
	}
	nonASCII := false
	for _, r := range s {
		if r > unicode.MaxASCII {
			nonASCII = true
			continue
		}
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return "", false
		}
	}
	return s, nonASCII
}

// ParseChannelID accepts a channel mention or a raw snowflake.
func ParseChannelID(s string) (string, bool) {
	if m := channelRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if snowflakeRe.MatchString(s) {
		return s, true
	}
	return "", false
}

func parseCount(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	return int(n), err
}

func findChannel(channels []*discordgo.Channel, id string) *discordgo.Channel {
	for _, ch := range channels {
		if ch != nil && ch.ID == id {
			return ch
		}
	}
	return nil
}

func mono(s string) string {
	return "`" + s + "`"
}
