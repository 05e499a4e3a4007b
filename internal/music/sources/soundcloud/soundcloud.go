package soundcloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"
)

var trackLinkRegex = regexp.MustCompile(`(?s)<a class="result__url"[^>]*>\s*(soundcloud\.com/[^<\s]+)\s*</a>`)

type Source struct {
	// SearchURL is queried with "site:soundcloud.com <query>".
	SearchURL string
	Client    *http.Client
}

func New() *Source {
	return &Source{
		SearchURL: "https://duckduckgo.com/html/",
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Source) Name() string { return sources.SourceSoundCloud }

func (s *Source) Parsers() []string {
	return []string{parsers.YtdlpPipe, parsers.YtdlpLink}
}

func (s *Source) Match(input string) bool {
	return strings.Contains(input, "soundcloud.com/")
}

func (s *Source) Resolve(_ context.Context, input string) ([]sources.Track, error) {
	return []sources.Track{{
		URL:     strings.TrimSpace(input),
		Source:  sources.SourceSoundCloud,
		Parsers: s.Parsers(),
	}}, nil
}

// Search finds the first SoundCloud track for query through a web search.
func (s *Source) Search(ctx context.Context, query string) ([]sources.Track, error) {
	searchURL := fmt.Sprintf("%s?q=%s", s.SearchURL, url.QueryEscape("site:soundcloud.com "+query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soundcloud search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud search failed with status code %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	m := trackLinkRegex.FindSubmatch(body)
	if m == nil {
		return nil, sources.ErrNotFound
	}
	return []sources.Track{{
		URL:     "https://" + string(m[1]),
		Title:   query,
		Source:  sources.SourceSoundCloud,
		Parsers: s.Parsers(),
	}}, nil
}
