package discord

import (
	"moobot/internal/command"
	"moobot/internal/command/cowboard"
	"moobot/internal/command/music"
	"moobot/internal/middleware"
	"moobot/pkg/cmd"
)

// CommandDeps are the collaborators the registered commands run against.
type CommandDeps struct {
	Cowboard    cowboard.Store
	Guilds      cowboard.Guilds
	Music       *music.Deps
	History     middleware.HistoryStore
	Permissions middleware.PermissionSource
	// IsDeveloper reports users allowed past permission checks. May be nil.
	IsDeveloper func(userID string) bool
}

// RegisterCommands adds the cowboard and music commands to r, each wrapped in
// the guild-only check, the permission check and the command logger.
func RegisterCommands(r *cmd.Registry, deps CommandDeps) error {
	mws := []cmd.Middleware{
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(deps.Permissions, deps.IsDeveloper),
		middleware.WithCommandLogger(deps.History),
	}

	cmds := []command.DiscordCommand{
		&cowboard.CowboardCommand{Store: deps.Cowboard, Guilds: deps.Guilds},
	}
	cmds = append(cmds, music.Commands(deps.Music)...)

	for _, c := range cmds {
		if err := command.RegisterCommand(r, c, mws...); err != nil {
			return err
		}
	}
	return nil
}
