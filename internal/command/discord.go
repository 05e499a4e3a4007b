package command

import (
	"context"
	"fmt"

	"moobot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// SlashProvider is implemented by commands that are also published as
// application commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// PermissionProvider lets a command require permissions per invocation, e.g.
// only for its mutating subcommands.
type PermissionProvider interface {
	PermissionsFor(args []string) []int64
}

// DiscordMeta is exposed by the adapter so middleware can read command
// metadata without depending on the concrete command type.
type DiscordMeta interface {
	Category() string
	UserPermissions() []int64
	GuildOnly() bool
}

// DiscordCommand is what individual commands implement. Run receives the
// runtime context, currently always a *MessageContext.
type DiscordCommand interface {
	Name() string
	Description() string
	Category() string
	UserPermissions() []int64
	Run(ctx interface{}) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// registry, delegating the optional provider interfaces to the inner command.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) GuildOnly() bool {
	if g, ok := a.Cmd.(interface{ GuildOnly() bool }); ok {
		return g.GuildOnly()
	}
	return false
}

func (a *DiscordAdapter) Aliases() []string {
	if al, ok := a.Cmd.(cmd.Aliased); ok {
		return al.Aliases()
	}
	return nil
}

func (a *DiscordAdapter) PermissionsFor(args []string) []int64 {
	if pp, ok := a.Cmd.(PermissionProvider); ok {
		return pp.PermissionsFor(args)
	}
	return a.Cmd.UserPermissions()
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) Run(_ context.Context, inv *cmd.Invocation) error {
	if mc, ok := inv.Data.(*MessageContext); ok && inv.Args != nil {
		mc.Args = inv.Args
	}
	return a.Cmd.Run(inv.Data)
}

// RegisterCommand wraps c in the adapter, applies middlewares and adds it to r.
func RegisterCommand(r *cmd.Registry, c DiscordCommand, mws ...cmd.Middleware) error {
	if err := r.Register(cmd.Apply(&DiscordAdapter{Cmd: c}, mws...)); err != nil {
		return fmt.Errorf("register %s: %w", c.Name(), err)
	}
	return nil
}

// Meta returns the DiscordMeta of a registered command, if any.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}
