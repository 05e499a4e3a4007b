package router

import (
	"context"
	"fmt"

	"moobot/internal/command"
	"moobot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// Router dispatches legacy messages to registered commands.
type Router struct {
	registry *cmd.Registry
	prefix   string
	chat     command.Chat
}

func New(registry *cmd.Registry, prefix string, chat command.Chat) *Router {
	return &Router{registry: registry, prefix: prefix, chat: chat}
}

// Dispatch runs the command addressed by m, if any. It reports whether a
// command was found. Messages from bots are ignored.
func (r *Router) Dispatch(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, mentionIDs ...string) (bool, error) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return false, nil
	}

	name, args, ok := Parse(m.Content, r.prefix, mentionIDs...)
	if !ok {
		return false, nil
	}
	c := r.registry.Get(name)
	if c == nil {
		log.Debug().Str("command", name).Str("guild", m.GuildID).Msg("unknown command")
		return false, nil
	}

	requestID := newRequestID()
	mc := &command.MessageContext{
		Session:   s,
		Event:     m,
		Args:      args,
		Chat:      r.chat,
		Prefix:    r.prefix,
		RequestID: requestID,
	}

	log.Debug().
		Str("request_id", requestID).
		Str("command", c.Name()).
		Str("guild", m.GuildID).
		Str("user", m.Author.ID).
		Msg("dispatching command")

	if err := c.Run(ctx, &cmd.Invocation{Args: args, Data: mc}); err != nil {
		return true, fmt.Errorf("command %s: %w", c.Name(), err)
	}
	return true, nil
}

func newRequestID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "unknown"
	}
	return id.String()
}
