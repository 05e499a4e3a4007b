package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
)

var (
	urlPattern   = regexp.MustCompile(`(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)
	videoPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)
)

// Metadata looks up video details. *kkdai.Client satisfies it.
type Metadata interface {
	GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
}

type Source struct {
	BaseURL string
	Client  *http.Client
	Meta    Metadata
}

func New(meta Metadata) *Source {
	return &Source{
		BaseURL: "https://www.youtube.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
		Meta:    meta,
	}
}

func (y *Source) Name() string { return sources.SourceYouTube }

func (y *Source) Parsers() []string {
	return []string{parsers.KkdaiLink, parsers.KkdaiPipe, parsers.YtdlpLink, parsers.YtdlpPipe}
}

func (y *Source) Match(input string) bool {
	return urlPattern.MatchString(input)
}

func (y *Source) Resolve(ctx context.Context, input string) ([]sources.Track, error) {
	if !isVideoURL(input) {
		return nil, errors.New("invalid YouTube URL format")
	}
	return []sources.Track{y.track(ctx, CleanVideoURL(input), "")}, nil
}

// Search returns the first result of a YouTube search.
func (y *Source) Search(ctx context.Context, query string) ([]sources.Track, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", y.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search failed with status code %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	m := videoPattern.FindSubmatch(body)
	if m == nil {
		return nil, sources.ErrNotFound
	}
	videoURL := fmt.Sprintf("%s/watch?v=%s", y.BaseURL, m[1])
	return []sources.Track{y.track(ctx, videoURL, query)}, nil
}

// track builds a Track, filling title and duration from metadata when available.
func (y *Source) track(ctx context.Context, videoURL, fallbackTitle string) sources.Track {
	t := sources.Track{
		URL:     videoURL,
		Title:   fallbackTitle,
		Source:  sources.SourceYouTube,
		Parsers: y.Parsers(),
	}
	if y.Meta == nil {
		return t
	}
	video, err := y.Meta.GetVideoContext(ctx, videoURL)
	if err != nil {
		log.Debug().Err(err).Str("url", videoURL).Msg("youtube metadata lookup failed")
		return t
	}
	if video.Title != "" {
		t.Title = video.Title
	}
	t.Duration = video.Duration
	return t
}

func isVideoURL(s string) bool {
	return strings.Contains(s, "youtube.com/watch?v=") || strings.Contains(s, "youtu.be/")
}

// CleanVideoURL drops everything but the video id from a watch link.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	switch host := u.Hostname(); host {
	case "youtu.be":
		if vid := strings.Trim(u.Path, "/"); vid != "" {
			return "https://youtu.be/" + vid
		}
	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if vid := u.Query().Get("v"); u.Path == "/watch" && vid != "" {
			return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
		}
	}
	return raw
}
