package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"
)

type YTDLPStreamer struct{}

func (s *YTDLPStreamer) SupportsPipe() bool { return true }

type info struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	URL      string  `json:"url"`
	Formats  []struct {
		URL       string `json:"url"`
		Fragments []struct {
			Duration float64 `json:"duration"`
		} `json:"fragments,omitempty"`
	} `json:"formats"`
}

// fetchInfo asks yt-dlp for the best audio format and fills in track metadata.
func fetchInfo(ctx context.Context, track *sources.Track) (*info, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp", "-j", "-f", "bestaudio", track.URL).Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp json error: %w", err)
	}

	var inf info
	if err := json.Unmarshal(out, &inf); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}

	// live and fragmented media may only carry a per-fragment duration
	if inf.Duration == 0 && len(inf.Formats) > 0 && len(inf.Formats[0].Fragments) > 0 {
		inf.Duration = inf.Formats[0].Fragments[0].Duration
	}
	track.Duration = time.Duration(inf.Duration * float64(time.Second))
	if track.Title == "" {
		track.Title = inf.Title
	}
	return &inf, nil
}

// GetLinkStream resolves the media URL with yt-dlp and hands it to ffmpeg.
func (s *YTDLPStreamer) GetLinkStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error) {
	inf, err := fetchInfo(ctx, track)
	if err != nil {
		return nil, nil, err
	}

	link := strings.TrimSpace(inf.URL)
	if link == "" && len(inf.Formats) > 0 {
		link = strings.TrimSpace(inf.Formats[0].URL)
	}
	if link == "" {
		return nil, nil, errors.New("empty URL returned from yt-dlp")
	}
	return parsers.StartFFmpeg(ctx, link, nil, seekSec)
}

// GetPipeStream pipes yt-dlp's download straight into ffmpeg.
func (s *YTDLPStreamer) GetPipeStream(ctx context.Context, track *sources.Track, seekSec float64) (io.ReadCloser, func(), error) {
	if _, err := fetchInfo(ctx, track); err != nil {
		return nil, nil, err
	}

	dl := exec.CommandContext(ctx, "yt-dlp", "-o", "-", "-f", "bestaudio", track.URL)
	audio, err := dl.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("yt-dlp stdout pipe error: %w", err)
	}
	if err := dl.Start(); err != nil {
		return nil, nil, fmt.Errorf("yt-dlp start error: %w", err)
	}

	out, stop, err := parsers.StartFFmpeg(ctx, "", audio, seekSec)
	if err != nil {
		_ = dl.Process.Kill()
		_ = dl.Wait()
		return nil, nil, err
	}

	cleanup := func() {
		stop()
		_ = dl.Process.Kill()
		_ = dl.Wait()
	}
	return out, cleanup, nil
}
