package ffmpeg

import (
	"context"
	"errors"
	"io"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"
)

// FFMPEGStreamer plays direct links, typically radio streams.
type FFMPEGStreamer struct{}

func (s *FFMPEGStreamer) GetLinkStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error) {
	return parsers.StartFFmpeg(ctx, track.URL, nil, seekSec)
}

func (s *FFMPEGStreamer) GetPipeStream(context.Context, *sources.Track, float64) (io.ReadCloser, func(), error) {
	return nil, nil, errors.New("pipe streaming not supported by ffmpeg parser")
}

func (s *FFMPEGStreamer) SupportsPipe() bool { return false }
