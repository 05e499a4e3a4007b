// Package httpapi serves a small read-only status API next to the bot.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"moobot/internal/music/sources"
	st "moobot/internal/storagetypes"
	"moobot/pkg/cmd"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CowboardReader reads a guild's cowboard configuration without creating it.
type CowboardReader interface {
	LookupCowboard(guildID string) (*st.Cowboard, bool, error)
}

// cowboardView is the public shape of a cowboard record; the webhook token
// never leaves the process.
type cowboardView struct {
	GuildID         string  `json:"guild_id"`
	Emote           string  `json:"emote"`
	Channel         *string `json:"channel,omitempty"`
	AddThreshold    int     `json:"add_threshold"`
	RemoveThreshold int     `json:"remove_threshold"`
	WebhookID       *string `json:"webhook_id,omitempty"`
	WebhookEnabled  bool    `json:"webhook_enabled"`
}

type commandView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JobLister reports the names of running background jobs.
type JobLister func() []string

// PlayerReader exposes a guild's playback state.
type PlayerReader interface {
	NowPlaying(guildID string) (*sources.Track, bool)
	Queue(guildID string) []sources.Track
	History(guildID string) []sources.Track
}

// Deps are the read-only sources the status API serves. Jobs and Player may be nil.
type Deps struct {
	Cowboard CowboardReader
	Registry *cmd.Registry
	Jobs     JobLister
	Player   PlayerReader
}

type trackView struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

type playerView struct {
	NowPlaying *trackView  `json:"now_playing"`
	Queue      []trackView `json:"queue"`
	History    []trackView `json:"history"`
}

func toTrackViews(tracks []sources.Track) []trackView {
	out := make([]trackView, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackView{Title: t.DisplayTitle(), URL: t.URL, Source: t.Source})
	}
	return out
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/commands", func(c *gin.Context) {
		var out []commandView
		for _, command := range d.Registry.GetAll() {
			out = append(out, commandView{Name: command.Name(), Description: command.Description()})
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/api/jobs", func(c *gin.Context) {
		running := []string{}
		if d.Jobs != nil {
			running = append(running, d.Jobs()...)
		}
		c.JSON(http.StatusOK, gin.H{"running": running})
	})

	r.GET("/api/guilds/:guildID/cowboard", func(c *gin.Context) {
		guildID := c.Param("guildID")
		cfg, ok, err := d.Cowboard.LookupCowboard(guildID)
		if err != nil {
			log.Error().Err(err).Str("guild", guildID).Msg("failed to read cowboard config")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cowboard config"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cowboard config for guild"})
			return
		}
		c.JSON(http.StatusOK, cowboardView{
			GuildID:         cfg.GuildID,
			Emote:           cfg.Emote,
			Channel:         cfg.Channel,
			AddThreshold:    cfg.AddThreshold,
			RemoveThreshold: cfg.RemoveThreshold,
			WebhookID:       cfg.WebhookID,
			WebhookEnabled:  cfg.HasWebhook(),
		})
	})

	r.GET("/api/guilds/:guildID/player", func(c *gin.Context) {
		view := playerView{Queue: []trackView{}, History: []trackView{}}
		if d.Player != nil {
			guildID := c.Param("guildID")
			if t, ok := d.Player.NowPlaying(guildID); ok {
				tv := toTrackViews([]sources.Track{*t})[0]
				view.NowPlaying = &tv
			}
			view.Queue = toTrackViews(d.Player.Queue(guildID))
			view.History = toTrackViews(d.Player.History(guildID))
		}
		c.JSON(http.StatusOK, view)
	})

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}
