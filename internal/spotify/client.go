// Package spotify provides a Spotify Web API backed music catalog.
package spotify

import (
	"context"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client wraps the Spotify API client with catalog methods.
type Client struct {
	api    *spotify.Client
	market string
}

// Option configures a Client.
type Option func(*Client)

// WithMarket restricts search and playlist results to tracks playable in
// the given ISO 3166-1 alpha-2 market.
func WithMarket(code string) Option {
	return func(c *Client) {
		c.market = code
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithCredentials authenticates with the client-credentials flow, which
// grants catalog access without a user login. Tokens are refreshed by the
// returned client as they expire.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// The token source uses the context's HTTP client for token requests.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cfg.Client(ctx)
	httpClient.Timeout = timeout

	return New(spotify.New(httpClient), opts...)
}
