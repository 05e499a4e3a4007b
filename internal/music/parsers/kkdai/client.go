package kkdai

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	// registers the socks4 scheme with golang.org/x/net/proxy
	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

// NewClient returns a YouTube client, routed through proxyStr when set.
// Supported schemes: http, https, socks5, socks4.
func NewClient(proxyStr string) (*youtube.Client, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if proxyStr == "" {
		return &youtube.Client{HTTPClient: httpClient}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy: %w", err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks4":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("%s dialer: %w", proxyURL.Scheme, err)
		}
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	log.Info().Str("scheme", proxyURL.Scheme).Str("host", proxyURL.Host).Msg("youtube client uses proxy")
	return &youtube.Client{HTTPClient: httpClient}, nil
}
