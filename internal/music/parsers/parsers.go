// Package parsers produces raw PCM streams (s16le, 48kHz, stereo) for tracks
// using yt-dlp, kkdai/youtube and ffmpeg.
package parsers

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"moobot/internal/music/sources"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz
)

// Parser names, in the form "<tool>-<mode>".
const (
	KkdaiLink  = "kkdai-link"
	KkdaiPipe  = "kkdai-pipe"
	YtdlpLink  = "ytdlp-link"
	YtdlpPipe  = "ytdlp-pipe"
	FFmpegLink = "ffmpeg-link"
)

// Streamer opens a PCM stream for a track. The returned cleanup func stops
// any helper processes and must always be called.
type Streamer interface {
	GetLinkStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error)
	GetPipeStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error)
	SupportsPipe() bool
}

// FFmpegArgs builds the ffmpeg arguments transcoding input to PCM on stdout.
// Pass "pipe:0" as input to read from stdin.
func FFmpegArgs(input string, seekSec float64) []string {
	args := []string{"-ss", strconv.FormatFloat(seekSec, 'f', 3, 64)}
	if input != "pipe:0" {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	return append(args,
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
}

// StartFFmpeg starts ffmpeg reading input (or stdin when set) and returns its stdout.
func StartFFmpeg(ctx context.Context, input string, stdin io.Reader, seekSec float64) (io.ReadCloser, func(), error) {
	if stdin != nil {
		input = "pipe:0"
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", FFmpegArgs(input, seekSec)...)
	cmd.Stdin = stdin

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return out, cleanup, nil
}
