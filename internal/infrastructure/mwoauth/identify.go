package mwoauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const maxIdentifyBody = 64 << 10

var (
	ErrIdentifyStatus = errors.New("mwoauth: identify returned non-200")
	ErrNonceMismatch  = errors.New("mwoauth: identify nonce mismatch")
	ErrNoUsername     = errors.New("mwoauth: identify token has no username")
	ErrIssuerMismatch = errors.New("mwoauth: identify token issued by another wiki")
)

// onceNoncer hands out one fixed nonce so the caller can check it against
// the identify JWT.
type onceNoncer string

func (n onceNoncer) Nonce() string { return string(n) }

// Identify calls Special:OAuth/identify with the access token and verifies
// the returned JWT against the consumer secret.
func (c *Client) Identify(ctx context.Context, at provider.AccessToken) (domain.RemoteIdentity, error) {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")

	// per-call copy, the noncer must not be shared between requests
	signer := *c.consumer
	signer.Noncer = onceNoncer(nonce)

	if c.httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth1.HTTPClient, c.httpClient)
	hc := signer.Client(ctx, oauth1.NewToken(at.Key, at.Secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, specialPage(c.endpoint, "Special:OAuth/identify"), nil)
	if err != nil {
		return domain.RemoteIdentity{}, fmt.Errorf("mwoauth: build identify request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return domain.RemoteIdentity{}, fmt.Errorf("mwoauth: identify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdentifyBody))
	if err != nil {
		return domain.RemoteIdentity{}, fmt.Errorf("mwoauth: read identify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RemoteIdentity{}, fmt.Errorf("%w: %d", ErrIdentifyStatus, resp.StatusCode)
	}

	return c.verifyIdentity(strings.TrimSpace(string(body)), nonce)
}

func (c *Client) verifyIdentity(raw, nonce string) (domain.RemoteIdentity, error) {
	wikiHost, err := hostOf(c.endpoint)
	if err != nil {
		return domain.RemoteIdentity{}, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return []byte(c.consumer.ConsumerSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(c.consumer.ConsumerKey),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.RemoteIdentity{}, fmt.Errorf("mwoauth: invalid identify token: %w", err)
	}

	// iss is the wiki's canonical server, whose scheme may differ from the
	// configured endpoint; only the host has to match
	issuer, _ := claims["iss"].(string)
	if h, err := hostOf(issuer); err != nil || h != wikiHost {
		return domain.RemoteIdentity{}, ErrIssuerMismatch
	}
	if got, _ := claims["nonce"].(string); got != nonce {
		return domain.RemoteIdentity{}, ErrNonceMismatch
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return domain.RemoteIdentity{}, ErrNoUsername
	}

	id := domain.RemoteIdentity{
		Username:  username,
		Sub:       int64Claim(claims, "sub"),
		Issuer:    issuer,
		EditCount: int64Claim(claims, "editcount"),
	}
	id.Blocked, _ = claims["blocked"].(bool)
	if groups, ok := claims["groups"].([]any); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				id.Groups = append(id.Groups, s)
			}
		}
	}
	return id, nil
}

// hostOf is the host (with port) of an absolute URL.
func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("mwoauth: %q has no scheme or host", raw)
	}
	return u.Host, nil
}

func int64Claim(c jwt.MapClaims, key string) int64 {
	switch v := c[key].(type) {
	case float64:
		return int64(v)
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return 0
}
