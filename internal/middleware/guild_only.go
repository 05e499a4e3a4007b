package middleware

import (
	"context"

	"moobot/internal/command"
	"moobot/pkg/cmd"

	"github.com/rs/zerolog/log"
)

// WithGuildOnly refuses to run guild-only commands outside a server.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			mc, ok := messageContext(inv)
			if !ok || mc.GuildID() != "" {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok || !meta.GuildOnly() {
				return c.Run(ctx, inv)
			}

			if err := mc.Reply("This command can only be run in a server."); err != nil {
				log.Warn().Err(err).Str("command", c.Name()).Msg("Failed to send guild-only notice")
			}
			return nil
		})
	}
}
