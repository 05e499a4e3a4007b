package radio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"moobot/internal/music/parsers"
	"moobot/internal/music/sources"
)

var validContentTypes = []string{
	"audio/",
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream",
}

// Source accepts direct stream links after checking their content type.
type Source struct {
	Client *http.Client
}

func New() *Source {
	return &Source{
		Client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (r *Source) Name() string      { return sources.SourceRadio }
func (r *Source) Parsers() []string { return []string{parsers.FFmpegLink} }

func (r *Source) Match(input string) bool {
	return sources.IsURL(input)
}

func (r *Source) Resolve(ctx context.Context, input string) ([]sources.Track, error) {
	contentType, finalURL, err := r.contentInfo(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content type: %w", err)
	}
	if !isAllowedType(contentType) && !isLikelyPlaylist(finalURL) {
		return nil, fmt.Errorf("invalid stream content-type %q for %s", contentType, finalURL)
	}

	return []sources.Track{{
		URL:     input,
		Source:  sources.SourceRadio,
		Parsers: r.Parsers(),
	}}, nil
}

// contentInfo returns the content type and final URL, trying HEAD before GET.
func (r *Source) contentInfo(ctx context.Context, rawURL string) (string, string, error) {
	var lastErr error
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return "", "", err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := r.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		// streams never end; read only a little before closing
		_, _ = io.CopyN(io.Discard, resp.Body, 512)
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return resp.Header.Get("Content-Type"), resp.Request.URL.String(), nil
	}
	return "", "", lastErr
}

func isAllowedType(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}
