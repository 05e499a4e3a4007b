// Package stream opens PCM streams for tracks and feeds them to Discord voice.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"moobot/internal/music/parsers"
	"moobot/internal/music/parsers/ffmpeg"
	"moobot/internal/music/parsers/kkdai"
	"moobot/internal/music/parsers/ytdlp"
	"moobot/internal/music/sources"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
)

// TrackStream is an open PCM stream together with the parser that produced it.
type TrackStream struct {
	io.ReadCloser
	Track   *sources.Track
	Parser  string
	cleanup func()
}

// Close closes the reader and stops helper processes.
func (ts *TrackStream) Close() error {
	err := ts.ReadCloser.Close()
	if ts.cleanup != nil {
		ts.cleanup()
	}
	return err
}

// Opener maps parser names to streamers.
type Opener struct {
	Streamers map[string]parsers.Streamer
}

// NewOpener registers every built-in parser. yt is shared by the kkdai modes.
func NewOpener(yt *youtube.Client) *Opener {
	kk := &kkdai.KKDAIStreamer{Client: yt}
	yd := &ytdlp.YTDLPStreamer{}
	return &Opener{Streamers: map[string]parsers.Streamer{
		parsers.KkdaiLink:  kk,
		parsers.KkdaiPipe:  kk,
		parsers.YtdlpLink:  yd,
		parsers.YtdlpPipe:  yd,
		parsers.FFmpegLink: &ffmpeg.FFMPEGStreamer{},
	}}
}

func isPipeMode(parser string) bool {
	return parser == parsers.YtdlpPipe || parser == parsers.KkdaiPipe
}

// Open tries the track's parsers in order and returns the first stream that opens.
func (o *Opener) Open(ctx context.Context, track *sources.Track) (*TrackStream, error) {
	if len(track.Parsers) == 0 {
		return nil, fmt.Errorf("no parsers for track %s", track.DisplayTitle())
	}

	var errs []error
	for _, parser := range track.Parsers {
		ts, err := o.OpenWith(ctx, track, parser, 0)
		if err == nil {
			return ts, nil
		}
		errs = append(errs, fmt.Errorf("parser %s: %w", parser, err))
		log.Warn().Err(err).Str("parser", parser).Str("track", track.DisplayTitle()).Msg("parser failed, trying next")
	}
	return nil, fmt.Errorf("all parsers failed for track %s: %w", track.DisplayTitle(), errors.Join(errs...))
}

// OpenWith opens a stream with one specific parser.
func (o *Opener) OpenWith(ctx context.Context, track *sources.Track, parser string, seekSec float64) (*TrackStream, error) {
	streamer, ok := o.Streamers[parser]
	if !ok {
		return nil, fmt.Errorf("streamer not found for parser: %v", parser)
	}

	var (
		r       io.ReadCloser
		cleanup func()
		err     error
	)
	if isPipeMode(parser) && streamer.SupportsPipe() {
		r, cleanup, err = streamer.GetPipeStream(ctx, track, seekSec)
	} else {
		r, cleanup, err = streamer.GetLinkStream(ctx, track, seekSec)
	}
	if err != nil {
		return nil, err
	}

	return &TrackStream{ReadCloser: r, Track: track, Parser: parser, cleanup: cleanup}, nil
}
