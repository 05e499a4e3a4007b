package middleware

import (
	"context"
	"fmt"
	"strings"

	"moobot/internal/command"
	"moobot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionManageGuild:      "Manage Server",
	discordgo.PermissionManageMessages:   "Manage Messages",
	discordgo.PermissionManageWebhooks:   "Manage Webhooks",
	discordgo.PermissionManageRoles:      "Manage Roles",
	discordgo.PermissionVoiceConnect:     "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:       "Speak",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
}

// PermissionSource resolves a member's effective permissions in a channel.
// *discordgo.Session satisfies it.
type PermissionSource interface {
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// WithUserPermissionCheck requires the invoking member to hold at least one of
// the command's permissions for the given arguments. Administrators and users
// for which isDeveloper reports true always pass; isDeveloper may be nil.
func WithUserPermissionCheck(perms PermissionSource, isDeveloper func(userID string) bool) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			mc, ok := messageContext(inv)
			if !ok || mc.GuildID() == "" {
				return c.Run(ctx, inv)
			}

			required := requiredPermissions(c, inv.Args)
			if len(required) == 0 {
				return c.Run(ctx, inv)
			}

			user := mc.Author()
			if isDeveloper != nil && isDeveloper(user.ID) {
				return c.Run(ctx, inv)
			}

			memberPerms, err := perms.UserChannelPermissions(user.ID, mc.ChannelID())
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if memberPerms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}
			for _, p := range required {
				if memberPerms&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			var allowed []string
			for _, p := range required {
				name := PermissionNames[p]
				if name == "" {
					name = fmt.Sprintf("0x%x", p)
				}
				allowed = append(allowed, name)
			}
			msg := fmt.Sprintf(
				"You need at least one of the following permissions to run this command:\n`%s`",
				strings.Join(allowed, "`, `"),
			)
			if err := mc.Say(msg); err != nil {
				log.Warn().Err(err).Str("command", c.Name()).Msg("Failed to send permission notice")
			}
			return nil
		})
	}
}

func requiredPermissions(c cmd.Command, args []string) []int64 {
	root := cmd.Root(c)
	if pp, ok := root.(command.PermissionProvider); ok {
		return pp.PermissionsFor(args)
	}
	if meta, ok := root.(command.DiscordMeta); ok {
		return meta.UserPermissions()
	}
	return nil
}
