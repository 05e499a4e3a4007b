package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// InteractionResponder acknowledges interactions. *discordgo.Session satisfies it.
type InteractionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MessageFromInteraction synthesizes the legacy message equivalent of an
// application command: "<@!appID> name option values...". The message ID is
// the interaction ID.
func MessageFromInteraction(i *discordgo.InteractionCreate) *discordgo.MessageCreate {
	data := i.ApplicationCommandData()

	parts := []string{fmt.Sprintf("<@!%s>", i.AppID), data.Name}
	parts = append(parts, flattenOptions(data.Options)...)

	author := i.User
	if i.Member != nil && i.Member.User != nil {
		author = i.Member.User
	}

	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        i.ID,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Content:   strings.Join(parts, " "),
		Author:    author,
		Member:    i.Member,
		Timestamp: time.Now(),
	}}
}

func flattenOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	var out []string
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			out = append(out, o.Name)
			out = append(out, flattenOptions(o.Options)...)
		default:
			out = append(out, Quote(optionValue(o.Value)))
		}
	}
	return out
}

func optionValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// HandleInteraction routes an application command through the legacy
// dispatcher. The interaction is deferred first so slow commands stay within
// Discord's response window; the deferred reply is then edited into the ack.
// Other interaction types are ignored.
func (r *Router) HandleInteraction(ctx context.Context, s *discordgo.Session, resp InteractionResponder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	deferred := true
	err := resp.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		deferred = false
		log.Error().Err(err).Str("interaction", i.ID).Msg("Failed to defer slash command")
	}

	msg := MessageFromInteraction(i)
	if _, err := r.Dispatch(ctx, s, msg, i.AppID); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Failed to run slash command")
	}

	if !deferred {
		return
	}
	content := fmt.Sprintf("✅ `/%s`", i.ApplicationCommandData().Name)
	if _, err := resp.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		log.Error().Err(err).Str("interaction", i.ID).Msg("Failed to respond to slash command")
	}
}
