package middleware

import (
	"context"
	"time"

	st "moobot/internal/storagetypes"
	"moobot/pkg/cmd"

	"github.com/rs/zerolog/log"
)

// HistoryStore records executed commands.
type HistoryStore interface {
	AppendCommandHistory(rec st.CommandHistory) error
}

// WithCommandLogger logs every execution and appends it to the guild's
// command history.
func WithCommandLogger(history HistoryStore) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			mc, ok := messageContext(inv)
			if !ok {
				return err
			}
			user := mc.Author()

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("request_id", mc.RequestID).
				Str("command", c.Name()).
				Strs("args", inv.Args).
				Str("guild", mc.GuildID()).
				Str("channel", mc.ChannelID()).
				Str("user", user.Username).
				Dur("took", time.Since(start)).
				Msg("command executed")

			if history == nil || mc.GuildID() == "" {
				return err
			}
			rec := st.CommandHistory{
				GuildID:   mc.GuildID(),
				ChannelID: mc.ChannelID(),
				UserID:    user.ID,
				Username:  user.Username,
				Command:   c.Name(),
				Datetime:  start.UTC(),
			}
			if herr := history.AppendCommandHistory(rec); herr != nil {
				log.Warn().Err(herr).Str("command", c.Name()).Msg("Failed to log command")
			}
			return err
		})
	}
}
