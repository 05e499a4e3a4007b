// Package discord runs the gateway session: it registers the commands, routes
// messages and interactions to them and keeps slash commands in sync.
package discord

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"moobot/internal/command"
	"moobot/internal/command/music"
	"moobot/internal/config"
	audio "moobot/internal/music"
	"moobot/internal/router"
	"moobot/internal/storage"
	"moobot/internal/voice"
	"moobot/pkg/cmd"
	"moobot/pkg/jobmgr"
	"moobot/pkg/util"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// syncWorkers bounds concurrent slash command syncs on startup.
const syncWorkers = 4

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    storage.Store
	registry *cmd.Registry
	router   *router.Router
	voice    *voice.Manager
	audio    *audio.Client
	syncer   *CommandSyncer
	jobs     *jobmgr.Manager

	ctx context.Context
}

// New creates the session and registers every command. It does not connect.
func New(cfg *config.Config, store storage.Store) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	client, err := audio.NewDefault(cfg.YouTubeProxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio client: %w", err)
	}

	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		store:    store,
		registry: cmd.NewRegistry(),
		voice:    voice.NewManager(dg, dg.State),
		audio:    client,
		jobs:     jobmgr.NewManager(logJobEvent),
		ctx:      context.Background(),
	}

	err = RegisterCommands(b.registry, CommandDeps{
		Cowboard:    store,
		Guilds:      guildAdapter{s: dg},
		Music:       &music.Deps{Voice: b.voice, Audio: b.audio},
		History:     store,
		Permissions: dg,
		IsDeveloper: cfg.IsDeveloper,
	})
	if err != nil {
		return nil, err
	}

	b.router = router.New(b.registry, cfg.CommandPrefix, command.NewSessionChat(dg))
	b.syncer = NewCommandSyncer(dg, b.registry, filepath.Join("data", "commands"))

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)

	return b, nil
}

// Registry exposes the registered commands.
func (b *Bot) Registry() *cmd.Registry { return b.registry }

// Audio exposes the audio client.
func (b *Bot) Audio() *audio.Client { return b.audio }

// Jobs lists the running background jobs.
func (b *Bot) Jobs() []string { return b.jobs.List() }

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, closing Discord session")

	b.jobs.StopAll()
	b.audio.Close()
	b.voice.LeaveAll()
	if err := b.dg.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")

	var guilds []string
	for _, g := range r.Guilds {
		if !b.leaveIfBlacklisted(s, g.ID) {
			guilds = append(guilds, g.ID)
		}
	}

	// failures are logged per guild so one guild never blocks the others
	_ = util.Parallel(b.ctx, guilds, syncWorkers, func(ctx context.Context, guildID string) error {
		b.syncCommands(ctx, r.User.ID, guildID)
		return nil
	})
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("Guild available")

	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	if s.State.User == nil {
		return
	}
	appID := s.State.User.ID
	err := b.jobs.StartAsync(b.ctx, "sync:"+g.ID, func(ctx context.Context) error {
		b.syncCommands(ctx, appID, g.ID)
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("guild", g.ID).Msg("Slash command sync not started")
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	var mentions []string
	if s.State.User != nil {
		mentions = append(mentions, s.State.User.ID)
	}
	if _, err := b.router.Dispatch(b.ctx, s, m, mentions...); err != nil {
		log.Error().Err(err).Str("guild", m.GuildID).Str("channel", m.ChannelID).Msg("Error running command")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.router.HandleInteraction(b.ctx, s, s, i)
}

// onVoiceStateUpdate drops the audio session when the bot is disconnected
// from voice by someone else.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}
	if !b.voice.Connected(v.GuildID) {
		return
	}
	log.Info().Str("guild", v.GuildID).Msg("Disconnected from voice, destroying audio session")
	b.voice.Forget(v.GuildID)
	b.audio.Destroy(v.GuildID)
}

func (b *Bot) syncCommands(ctx context.Context, appID, guildID string) {
	if !b.cfg.InitSlashCommands {
		log.Debug().Str("guild", guildID).Msg("Slash command registration skipped")
		return
	}
	if err := b.syncer.Sync(ctx, appID, guildID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("Error registering slash commands")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	log.Info().Str("guild", guildID).Msg("Leaving blacklisted guild")
	if err := b.jobs.Stop("sync:" + guildID); err != nil && !errors.Is(err, jobmgr.ErrNotRunning) {
		log.Warn().Err(err).Str("guild", guildID).Msg("Failed to stop sync job")
	}
	if s.State.User != nil {
		b.syncer.RemoveAll(s.State.User.ID, guildID)
	}
	if err := s.GuildLeave(guildID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("Failed to leave guild")
	}
	return true
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func logJobEvent(e jobmgr.Event) {
	switch e.State {
	case "error":
		log.Error().Err(e.Err).Str("job", e.Name).Msg("Job failed")
	default:
		log.Debug().Str("job", e.Name).Str("state", e.State).Msg("Job state changed")
	}
}
