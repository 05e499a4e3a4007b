package kkdai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"

	youtube "github.com/kkdai/youtube/v2"
)

// KKDAIStreamer fetches YouTube audio with kkdai/youtube and transcodes it with ffmpeg.
type KKDAIStreamer struct {
	Client *youtube.Client
}

func (s *KKDAIStreamer) SupportsPipe() bool { return true }

func (s *KKDAIStreamer) video(ctx context.Context, track *sources.Track) (*youtube.Video, *youtube.Format, error) {
	if s.Client == nil {
		s.Client = &youtube.Client{}
	}
	video, err := s.Client.GetVideoContext(ctx, track.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("youtube client error: %w", err)
	}

	track.Duration = video.Duration
	if track.Title == "" {
		track.Title = video.Title
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nil, errors.New("no audio formats found for video")
	}
	return video, &formats[0], nil
}

// GetLinkStream resolves the direct media URL and lets ffmpeg fetch it.
func (s *KKDAIStreamer) GetLinkStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error) {
	video, format, err := s.video(ctx, track)
	if err != nil {
		return nil, nil, err
	}
	link, err := s.Client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, nil, fmt.Errorf("get stream URL error: %w", err)
	}
	return parsers.StartFFmpeg(ctx, link, nil, seekSec)
}

// GetPipeStream downloads through the client and pipes the bytes into ffmpeg.
func (s *KKDAIStreamer) GetPipeStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error) {
	video, format, err := s.video(ctx, track)
	if err != nil {
		return nil, nil, err
	}
	audio, _, err := s.Client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, nil, fmt.Errorf("get stream error: %w", err)
	}

	out, stop, err := parsers.StartFFmpeg(ctx, "", audio, seekSec)
	if err != nil {
		audio.Close()
		return nil, nil, err
	}
	cleanup := func() {
		audio.Close()
		stop()
	}
	return out, cleanup, nil
}
