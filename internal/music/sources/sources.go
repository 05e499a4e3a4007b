// Package sources turns user input (a link or a search query) into playable
// tracks.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SourceYouTube    = "youtube"
	SourceSoundCloud = "soundcloud"
	SourceRadio      = "radio"
)

// ErrNotFound is returned when a query yields no track.
var ErrNotFound = errors.New("no track found")

// Track is a resolved, playable item. Parsers lists the stream parsers to try,
// in order.
type Track struct {
	URL      string
	Title    string
	Source   string
	Parsers  []string
	Duration time.Duration
}

// DisplayTitle falls back to the URL when no title is known.
func (t Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.URL
}

type Source interface {
	// Match reports whether the source handles the given link.
	Match(input string) bool
	// Resolve turns an input into one or more tracks.
	Resolve(ctx context.Context, input string) ([]Track, error)
	Name() string
	Parsers() []string
}

// Searcher is implemented by sources that support title search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Track, error)
}

// Resolver picks a source for an input. Titles go to the first source that
// can search; links go to the first matching source, radio last.
type Resolver struct {
	sources []Source
}

func NewResolver(srcs ...Source) *Resolver {
	return &Resolver{sources: srcs}
}

// Resolve resolves input, optionally pinned to a named source.
func (r *Resolver) Resolve(ctx context.Context, input, source string) ([]Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty input")
	}

	if source != "" {
		src := r.byName(source)
		if src == nil {
			return nil, fmt.Errorf("unknown source: %s", source)
		}
		if !IsURL(input) {
			s, ok := src.(Searcher)
			if !ok {
				return nil, fmt.Errorf("title search is not supported on %s", source)
			}
			return s.Search(ctx, input)
		}
		if !src.Match(input) {
			return nil, fmt.Errorf("input does not match selected source: %s", source)
		}
		return src.Resolve(ctx, input)
	}

	if !IsURL(input) {
		for _, src := range r.sources {
			if s, ok := src.(Searcher); ok {
				return s.Search(ctx, input)
			}
		}
		return nil, errors.New("no source supports title search")
	}

	var fallback Source
	for _, src := range r.sources {
		if src.Name() == SourceRadio {
			fallback = src
			continue
		}
		if src.Match(input) {
			return src.Resolve(ctx, input)
		}
	}
	if fallback != nil {
		return fallback.Resolve(ctx, input)
	}
	return nil, fmt.Errorf("no matching source for %s", input)
}

func (r *Resolver) byName(name string) Source {
	for _, src := range r.sources {
		if src.Name() == name {
			return src
		}
	}
	return nil
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
