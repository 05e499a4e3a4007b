package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"moobot/internal/command"
	"moobot/pkg/cmd"
	"moobot/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// CommandAPI is the part of *discordgo.Session used to manage guild commands.
type CommandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// CommandSyncer keeps a guild's slash commands in line with the registry,
// caching definition hashes under CacheDir so unchanged commands are skipped.
type CommandSyncer struct {
	API      CommandAPI
	Registry *cmd.Registry
	CacheDir string

	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.Config
	locks   sync.Map // guild ID -> *sync.Mutex
}

func NewCommandSyncer(api CommandAPI, registry *cmd.Registry, cacheDir string) *CommandSyncer {
	retry := retrylimit.DefaultConfig()
	retry.StatusCode = restStatus
	return &CommandSyncer{
		API:      api,
		Registry: registry,
		CacheDir: cacheDir,
		// Discord allows about 50 requests per second per bot
		limiter: retrylimit.NewAdaptiveLimiter(rate.Limit(40), rate.Limit(1), rate.Limit(45), rate.Limit(2), 0.5),
		retry:   retry,
	}
}

// Definitions returns the slash definitions of every registered command.
func (s *CommandSyncer) Definitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range s.Registry.GetAll() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// Sync deletes obsolete remote commands and creates those whose definition
// changed since the last successful sync.
func (s *CommandSyncer) Sync(ctx context.Context, appID, guildID string) error {
	mu := s.guildLock(guildID)
	mu.Lock()
	defer mu.Unlock()

	var remote []*discordgo.ApplicationCommand
	err := retrylimit.WithRetryConfig(ctx, func() error {
		var err error
		remote, err = s.API.ApplicationCommands(appID, guildID)
		return err
	}, s.limiter, s.retry)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	defs := s.Definitions()
	hashes := s.loadHashes(guildID)

	wanted := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		wanted[d.Name] = struct{}{}
	}
	remoteNames := make(map[string]struct{}, len(remote))
	for _, rc := range remote {
		remoteNames[rc.Name] = struct{}{}
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := s.API.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("failed to delete command")
			continue
		}
		delete(hashes, rc.Name)
	}

	var errs []error
	for _, d := range defs {
		h := hashCommand(d)
		_, present := remoteNames[d.Name]
		if present && hashes[d.Name] == h {
			continue
		}

		err := retrylimit.WithRetryConfig(ctx, func() error {
			_, err := s.API.ApplicationCommandCreate(appID, guildID, d)
			return err
		}, s.limiter, s.retry)
		if err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
			errs = append(errs, fmt.Errorf("register %s: %w", d.Name, err))
			delete(hashes, d.Name)
			continue
		}
		hashes[d.Name] = h
		log.Debug().Str("guild", guildID).Str("command", d.Name).Msg("registered command")
	}

	if err := s.saveHashes(guildID, hashes); err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("failed to save command hashes")
	}
	return errors.Join(errs...)
}

// RemoveAll deletes every command registered for the guild.
func (s *CommandSyncer) RemoveAll(appID, guildID string) {
	existing, err := s.API.ApplicationCommands(appID, guildID)
	if err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("failed to list commands")
		return
	}
	for _, c := range existing {
		if err := s.API.ApplicationCommandDelete(appID, guildID, c.ID); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", c.Name).Msg("failed to delete command")
		}
	}
}

// guildLock serializes syncs of one guild; different guilds run concurrently.
func (s *CommandSyncer) guildLock(guildID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(guildID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// commandDefinition extracts the slash definition of a registered command,
// walking through middleware wrappers via cmd.Root.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def == nil {
		return nil
	}
	if def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

func (s *CommandSyncer) hashPath(guildID string) string {
	return filepath.Join(s.CacheDir, guildID+".json")
}

func (s *CommandSyncer) loadHashes(guildID string) map[string]string {
	out := make(map[string]string)
	if data, err := os.ReadFile(s.hashPath(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (s *CommandSyncer) saveHashes(guildID string, hashes map[string]string) error {
	path := s.hashPath(guildID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// restStatus extracts the HTTP status of a discordgo REST error.
func restStatus(err error) int {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}
	return 0
}
