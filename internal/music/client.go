// Package music is the audio client behind the music commands: it resolves
// queries into tracks and keeps one player per guild voice session.
package music

import (
	"context"
	"errors"
	"io"
	"sync"

	"moobot/internal/music/parsers/kkdai"
	"moobot/internal/music/player"
	"moobot/internal/music/sources"
	"moobot/internal/music/sources/radio"
	"moobot/internal/music/sources/soundcloud"
	"moobot/internal/music/sources/youtube"
	"moobot/internal/music/stream"
	"moobot/internal/voice"

	"github.com/rs/zerolog/log"
)

// ErrNoSession is returned when a guild has no audio session.
var ErrNoSession = errors.New("no audio session for guild")

type session struct {
	player *player.Player
	conn   *voice.ConnectionInfo
}

type Client struct {
	mu       sync.Mutex
	sessions map[string]*session
	resolver *sources.Resolver
	open     player.OpenFunc
	sink     func(*voice.ConnectionInfo) player.Sink
}

// New builds a client playing through Discord voice.
func New(resolver *sources.Resolver, opener *stream.Opener) *Client {
	open := func(ctx context.Context, t *sources.Track) (io.ReadCloser, error) {
		ts, err := opener.Open(ctx, t)
		if err != nil {
			return nil, err
		}
		return ts, nil
	}
	sink := func(ci *voice.ConnectionInfo) player.Sink {
		return func(ctx context.Context, r io.Reader) error {
			return stream.ToDiscord(ctx, r, ci.Conn)
		}
	}
	return newClient(resolver, open, sink)
}

func newClient(resolver *sources.Resolver, open player.OpenFunc, sink func(*voice.ConnectionInfo) player.Sink) *Client {
	return &Client{
		sessions: make(map[string]*session),
		resolver: resolver,
		open:     open,
		sink:     sink,
	}
}

// NewDefault wires the YouTube, SoundCloud and radio sources and every
// stream parser. proxy applies to YouTube traffic and may be empty.
func NewDefault(proxy string) (*Client, error) {
	yt, err := kkdai.NewClient(proxy)
	if err != nil {
		return nil, err
	}
	resolver := sources.NewResolver(
		youtube.New(yt),
		soundcloud.New(),
		radio.New(),
	)
	return New(resolver, stream.NewOpener(yt)), nil
}

// Search resolves a link or a title query into tracks.
func (c *Client) Search(ctx context.Context, query string) ([]sources.Track, error) {
	return c.resolver.Resolve(ctx, query, "")
}

// CreateSession starts an audio session on an open voice connection,
// replacing any previous session for the guild. A session already bound to
// the same connection is kept, queue and playback included.
func (c *Client) CreateSession(ci *voice.ConnectionInfo) {
	c.mu.Lock()
	old, ok := c.sessions[ci.GuildID]
	if ok && sameConnection(old.conn, ci) {
		c.mu.Unlock()
		return
	}
	p := player.New(ci.GuildID, c.open, c.sink(ci))
	p.OnStatus = func(s player.Status, t *sources.Track) {
		ev := log.Debug().Str("guild", ci.GuildID).Str("status", s.StringEmoji()+" "+string(s))
		if t != nil {
			ev = ev.Str("track", t.DisplayTitle())
		}
		ev.Msg("player status")
	}
	c.sessions[ci.GuildID] = &session{player: p, conn: ci}
	c.mu.Unlock()

	if old != nil {
		old.player.Stop()
	}
}

func sameConnection(a, b *voice.ConnectionInfo) bool {
	if a == b {
		return true
	}
	return a.ChannelID == b.ChannelID && a.Conn != nil && a.Conn == b.Conn
}

// Destroy stops and removes the guild's session.
func (c *Client) Destroy(guildID string) {
	c.mu.Lock()
	cur := c.sessions[guildID]
	delete(c.sessions, guildID)
	c.mu.Unlock()

	if cur != nil {
		cur.player.Stop()
	}
}

// Play queues track, starting playback when the session is idle.
func (c *Client) Play(guildID string, track sources.Track) error {
	p, ok := c.player(guildID)
	if !ok {
		return ErrNoSession
	}
	return p.Enqueue(track)
}

func (c *Client) Skip(guildID string) (*sources.Track, bool) {
	p, ok := c.player(guildID)
	if !ok {
		return nil, false
	}
	return p.Skip()
}

func (c *Client) NowPlaying(guildID string) (*sources.Track, bool) {
	p, ok := c.player(guildID)
	if !ok {
		return nil, false
	}
	return p.NowPlaying()
}

// Queue returns the guild's pending tracks.
func (c *Client) Queue(guildID string) []sources.Track {
	p, ok := c.player(guildID)
	if !ok {
		return nil
	}
	return p.Queue()
}

// History returns the guild's recently started tracks.
func (c *Client) History(guildID string) []sources.Track {
	p, ok := c.player(guildID)
	if !ok {
		return nil
	}
	return p.History()
}

// Close stops every session.
func (c *Client) Close() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*session)
	c.mu.Unlock()

	for _, cur := range sessions {
		cur.player.Stop()
	}
}

func (c *Client) player(guildID string) (*player.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.sessions[guildID]
	if !ok {
		return nil, false
	}
	return cur.player, true
}
