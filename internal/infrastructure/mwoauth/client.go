// Package mwoauth talks to MediaWiki's Special:OAuth (OAuth 1.0a) on behalf
// of a registered consumer.
package mwoauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/config"
)

var (
	ErrMissingVerifier   = errors.New("mwoauth: callback query has no oauth_verifier")
	ErrUnexpectedToken   = errors.New("mwoauth: callback oauth_token does not match request token")
	ErrMalformedCallback = errors.New("mwoauth: malformed callback query")
)

// Client completes handshakes and identifies users against one wiki.
type Client struct {
	endpoint   string
	consumer   *oauth1.Config
	httpClient *http.Client
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient sets the client used for both the token exchange and
// identify.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLeeway sets the allowed clock skew for the identify JWT.
func WithLeeway(d time.Duration) Option {
	return func(c *Client) { c.leeway = d }
}

func NewClient(cfg config.ProviderConfig, opts ...Option) *Client {
	consumer := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	consumer.Endpoint = oauth1.Endpoint{
		RequestTokenURL: specialPage(cfg.OAuthEndpoint, "Special:OAuth/initiate"),
		AuthorizeURL:    specialPage(cfg.OAuthEndpoint, "Special:OAuth/authorize"),
		AccessTokenURL:  specialPage(cfg.OAuthEndpoint, "Special:OAuth/token"),
	}
	// MediaWiki rejects requests without a callback, "oob" is its
	// out-of-band marker.
	consumer.CallbackURL = "oob"

	c := &Client{
		endpoint: cfg.OAuthEndpoint,
		consumer: consumer,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		leeway: 10 * time.Second,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	// the token exchange goes through the same bounded client
	c.consumer.HTTPClient = c.httpClient
	return c
}

// Complete exchanges the client's authorized request token for an access
// token. callbackQuery is the raw query string the wiki redirected the
// client back with.
func (c *Client) Complete(ctx context.Context, rt provider.RequestToken, callbackQuery string) (provider.AccessToken, error) {
	q, err := url.ParseQuery(callbackQuery)
	if err != nil {
		return provider.AccessToken{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	verifier := q.Get("oauth_verifier")
	if verifier == "" {
		return provider.AccessToken{}, ErrMissingVerifier
	}
	if tok := q.Get("oauth_token"); tok != "" && tok != rt.Key {
		return provider.AccessToken{}, ErrUnexpectedToken
	}
	if err := ctx.Err(); err != nil {
		return provider.AccessToken{}, err
	}

	// oauth1 takes no context here; only the http.Client timeout bounds the exchange
	key, secret, err := c.consumer.AccessToken(rt.Key, rt.Secret, verifier)
	if err != nil {
		return provider.AccessToken{}, fmt.Errorf("mwoauth: token exchange failed: %w", err)
	}
	return provider.AccessToken{Key: key, Secret: secret}, nil
}

// specialPage builds "<index.php>?title=<page>", keeping any query the
// configured endpoint already carries.
func specialPage(endpoint, page string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set("title", page)
	u.RawQuery = q.Encode()
	return u.String()
}
