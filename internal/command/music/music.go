// Package music implements the voice and playback commands.
package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moobot/internal/command"
	"moobot/internal/music/sources"
	"moobot/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const category = "🎵 Music"

const searchTimeout = 30 * time.Second

// VoiceManager joins and leaves guild voice channels.
type VoiceManager interface {
	Join(guildID, channelID string) (*voice.ConnectionInfo, error)
	Leave(guildID string) error
	Connected(guildID string) bool
	UserChannel(guildID, userID string) (string, error)
}

// AudioClient searches tracks and controls per-guild playback sessions.
type AudioClient interface {
	Search(ctx context.Context, query string) ([]sources.Track, error)
	CreateSession(ci *voice.ConnectionInfo)
	Destroy(guildID string)
	Play(guildID string, track sources.Track) error
	Skip(guildID string) (*sources.Track, bool)
	NowPlaying(guildID string) (*sources.Track, bool)
}

type Deps struct {
	Voice VoiceManager
	Audio AudioClient
}

// Commands returns every music command sharing deps.
func Commands(deps *Deps) []command.DiscordCommand {
	return []command.DiscordCommand{
		&HelpCommand{},
		&JoinCommand{deps},
		&LeaveCommand{deps},
		&PlayCommand{deps},
		&NowPlayingCommand{deps},
		&SkipCommand{deps},
	}
}

func slash(name, description string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: name, Description: description, Options: opts}
}

func messageContext(ctx interface{}) (*command.MessageContext, error) {
	mc, ok := ctx.(*command.MessageContext)
	if !ok {
		return nil, fmt.Errorf("unsupported context %T", ctx)
	}
	return mc, nil
}

type HelpCommand struct{}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "List the music commands" }
func (c *HelpCommand) Category() string         { return category }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *HelpCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}
	return mc.Say("`help, join, leave, play, now_playing, skip`")
}

type JoinCommand struct{ *Deps }

func (c *JoinCommand) Name() string             { return "join" }
func (c *JoinCommand) Description() string      { return "Join your voice channel" }
func (c *JoinCommand) Category() string         { return category }
func (c *JoinCommand) UserPermissions() []int64 { return []int64{} }
func (c *JoinCommand) GuildOnly() bool          { return true }

func (c *JoinCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *JoinCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}
	_, err = join(c.Deps, mc, func(err error) string {
		return fmt.Sprintf("Error joining the channel: %v", err)
	})
	return err
}

// join connects to the caller's voice channel and opens an audio session.
// It returns false when it did not connect; the caller has been told why.
func join(d *Deps, mc *command.MessageContext, failure func(error) string) (bool, error) {
	channelID, err := d.Voice.UserChannel(mc.GuildID(), mc.Author().ID)
	if err != nil {
		return false, mc.Reply("Join a voice channel first.")
	}

	ci, err := d.Voice.Join(mc.GuildID(), channelID)
	if err != nil {
		log.Error().Err(err).Str("guild", mc.GuildID()).Str("channel", channelID).Msg("failed to join voice channel")
		return false, mc.Say(failure(err))
	}

	d.Audio.CreateSession(ci)
	return true, mc.Say(fmt.Sprintf("Joined <#%s>", channelID))
}

type LeaveCommand struct{ *Deps }

func (c *LeaveCommand) Name() string             { return "leave" }
func (c *LeaveCommand) Description() string      { return "Leave the voice channel" }
func (c *LeaveCommand) Category() string         { return category }
func (c *LeaveCommand) UserPermissions() []int64 { return []int64{} }
func (c *LeaveCommand) GuildOnly() bool          { return true }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *LeaveCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}

	guildID := mc.GuildID()
	if !c.Voice.Connected(guildID) {
		return mc.Reply("Not in a voice channel")
	}

	if err := c.Voice.Leave(guildID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("failed to leave voice channel")
		if err := mc.Say(fmt.Sprintf("Failed: %v", err)); err != nil {
			return err
		}
	}
	c.Audio.Destroy(guildID)
	return mc.Say("Left voice channel")
}

type PlayCommand struct{ *Deps }

func (c *PlayCommand) Name() string             { return "play" }
func (c *PlayCommand) Description() string      { return "Queue a track from a link or a search query" }
func (c *PlayCommand) Category() string         { return category }
func (c *PlayCommand) UserPermissions() []int64 { return []int64{} }
func (c *PlayCommand) GuildOnly() bool          { return true }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description(), &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "query",
		Description: "Link or search query",
		Required:    true,
	})
}

func (c *PlayCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(mc.Args, " "))
	if query == "" {
		return mc.Say("Please enter a query or link.")
	}

	guildID := mc.GuildID()
	if !c.Voice.Connected(guildID) {
		joined, err := join(c.Deps, mc, func(error) string {
			return "Failed to connect to voice channel; maybe I don't have permissions?"
		})
		if !joined || err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	tracks, err := c.Audio.Search(sctx, query)
	if err != nil && !errors.Is(err, sources.ErrNotFound) {
		log.Error().Err(err).Str("guild", guildID).Str("query", query).Msg("track search failed")
	}
	if len(tracks) == 0 {
		return mc.Say("Could not find any video of the search query.")
	}

	track := tracks[0]
	if err := c.Audio.Play(guildID, track); err != nil {
		log.Error().Err(err).Str("guild", guildID).Str("track", track.URL).Msg("failed to queue")
		return nil
	}
	return mc.Say(fmt.Sprintf("Added to queue: %s", track.DisplayTitle()))
}

type NowPlayingCommand struct{ *Deps }

func (c *NowPlayingCommand) Name() string             { return "now_playing" }
func (c *NowPlayingCommand) Description() string      { return "Show the current track" }
func (c *NowPlayingCommand) Category() string         { return category }
func (c *NowPlayingCommand) UserPermissions() []int64 { return []int64{} }
func (c *NowPlayingCommand) GuildOnly() bool          { return true }
func (c *NowPlayingCommand) Aliases() []string        { return []string{"np", "nowplaying"} }

func (c *NowPlayingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *NowPlayingCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}
	if track, ok := c.Audio.NowPlaying(mc.GuildID()); ok {
		return mc.Say(fmt.Sprintf("Now Playing: %s", track.DisplayTitle()))
	}
	return mc.Say("Nothing is playing at the moment.")
}

type SkipCommand struct{ *Deps }

func (c *SkipCommand) Name() string             { return "skip" }
func (c *SkipCommand) Description() string      { return "Skip the current track" }
func (c *SkipCommand) Category() string         { return category }
func (c *SkipCommand) UserPermissions() []int64 { return []int64{} }
func (c *SkipCommand) GuildOnly() bool          { return true }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *SkipCommand) Run(ctx interface{}) error {
	mc, err := messageContext(ctx)
	if err != nil {
		return err
	}
	if track, ok := c.Audio.Skip(mc.GuildID()); ok {
		return mc.Say(fmt.Sprintf("Skipped: %s", track.DisplayTitle()))
	}
	return mc.Say("Nothing to skip.")
}
