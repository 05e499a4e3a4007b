// Package player holds a guild's track queue and runs its playback loop.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"moobot/internal/music/sources"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const historyLimit = 20

type Status string

const (
	StatusPlaying Status = "Playing"
	StatusAdded   Status = "Track(s) Added"
	StatusStopped Status = "Playback Stopped"
	StatusSkipped Status = "Track Skipped"
	StatusError   Status = "Error"
)

func (s Status) StringEmoji() string {
	m := map[Status]string{
		StatusPlaying: "▶️",
		StatusAdded:   "🎶",
		StatusStopped: "⏹",
		StatusSkipped: "⏭",
		StatusError:   "❌",
	}
	return m[s]
}

var (
	ErrNoTracksInQueue = errors.New("no tracks in queue")
	ErrStopped         = errors.New("player is stopped")
)

// OpenFunc opens a PCM stream for a track.
type OpenFunc func(ctx context.Context, track *sources.Track) (io.ReadCloser, error)

// Sink consumes a PCM stream until it ends or ctx is cancelled.
type Sink func(ctx context.Context, r io.Reader) error

type Player struct {
	mu      sync.Mutex
	guildID string
	queue   []sources.Track
	history []sources.Track
	current *sources.Track
	running bool
	stopped bool

	open OpenFunc
	sink Sink

	// OnStatus, when set, runs with the player lock held and must not call
	// back into the player.
	OnStatus func(Status, *sources.Track)

	ctx         context.Context
	cancel      context.CancelFunc
	cancelTrack context.CancelFunc
	done        chan struct{}
	logger      zerolog.Logger
}

func New(guildID string, open OpenFunc, sink Sink) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		guildID: guildID,
		open:    open,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With().Str("component", "player").Str("guild", guildID).Logger(),
	}
}

// Enqueue appends tracks and starts playback when the player is idle.
func (p *Player) Enqueue(tracks ...sources.Track) error {
	if len(tracks) == 0 {
		return ErrNoTracksInQueue
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	p.queue = append(p.queue, tracks...)
	p.logger.Debug().Int("added", len(tracks)).Int("queue", len(p.queue)).Msg("tracks enqueued")

	if p.running {
		p.emit(StatusAdded, &tracks[0])
		return nil
	}
	p.running = true
	p.done = make(chan struct{})
	go p.loop(p.done)
	return nil
}

// Skip ends the current track; the loop moves on to the next queued one.
func (p *Player) Skip() (*sources.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, false
	}
	skipped := *p.current
	if p.cancelTrack != nil {
		p.cancelTrack()
	}
	p.emit(StatusSkipped, &skipped)
	return &skipped, true
}

func (p *Player) NowPlaying() (*sources.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, false
	}
	t := *p.current
	return &t, true
}

// Queue returns a copy of the pending tracks.
func (p *Player) Queue() []sources.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

// History returns a copy of the last tracks that started playing, oldest first.
func (p *Player) History() []sources.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

// Stop clears the queue, ends playback and waits for the loop to exit.
// The player cannot be reused afterwards.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.queue = nil
	done := p.done
	running := p.running
	p.mu.Unlock()

	p.cancel()
	if running {
		<-done
	}
}

func (p *Player) loop(done chan struct{}) {
	defer close(done)

	for {
		track, ctx, ok := p.next()
		if !ok {
			return
		}

		if err := p.play(ctx, track); err != nil {
			p.logger.Error().Err(err).Str("track", track.DisplayTitle()).Msg("playback failed")
			p.emit(StatusError, track)
		}

		p.mu.Lock()
		p.current = nil
		p.cancelTrack = nil
		p.mu.Unlock()
	}
}

// next pops the head of the queue, or marks the player idle when empty.
func (p *Player) next() (*sources.Track, context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 || p.ctx.Err() != nil {
		p.running = false
		p.emit(StatusStopped, nil)
		return nil, nil, false
	}

	track := p.queue[0]
	p.queue = p.queue[1:]
	ctx, cancel := context.WithCancel(p.ctx)
	p.current = &track
	p.cancelTrack = cancel
	p.history = append(p.history, track)
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}
	return &track, ctx, true
}

func (p *Player) play(ctx context.Context, track *sources.Track) error {
	defer func() {
		p.mu.Lock()
		if p.cancelTrack != nil {
			p.cancelTrack()
		}
		p.mu.Unlock()
	}()

	r, err := p.open(ctx, track)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer r.Close()

	p.logger.Info().Str("track", track.DisplayTitle()).Str("url", track.URL).Msg("now playing")
	p.emit(StatusPlaying, track)

	if err := p.sink(ctx, r); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream: %w", err)
	}
	return nil
}

func (p *Player) emit(s Status, t *sources.Track) {
	if p.OnStatus != nil {
		p.OnStatus(s, t)
	}
}
