package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// DefaultOAuthEndpoint is the wiki index.php that serves Special:OAuth.
const DefaultOAuthEndpoint = "https://meta.wikimedia.org/w/index.php"

// Raw provider keys, as found in the homeserver's module config block.
const (
	KeyConsumerKey    = "consumer_key"
	KeyConsumerSecret = "consumer_secret"
	KeyOAuthEndpoint  = "oauth_endpoint"
	KeyDomainSuffix   = "domain_suffix"
)

// ProviderConfig is immutable once parsed. Copy it by value.
type ProviderConfig struct {
	OAuthEndpoint  string
	ConsumerKey    string
	ConsumerSecret string

	// DomainSuffix, when set, replaces the homeserver name as the domain of
	// canonical identifiers.
	DomainSuffix string
}

// ParseProviderConfig validates raw provider settings. All missing required
// keys are reported in a single error.
func ParseProviderConfig(raw map[string]string) (ProviderConfig, error) {
	var missing []string
	for _, k := range []string{KeyConsumerKey, KeyConsumerSecret} {
		if strings.TrimSpace(raw[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return ProviderConfig{}, domain.ErrConfigMissing(missing...)
	}

	endpoint := strings.TrimSpace(raw[KeyOAuthEndpoint])
	if endpoint == "" {
		endpoint = DefaultOAuthEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return ProviderConfig{}, domain.ErrConfigInvalid(KeyOAuthEndpoint, "must be an absolute http(s) URL")
	}

	suffix := strings.TrimPrefix(strings.TrimSpace(raw[KeyDomainSuffix]), ":")

	return ProviderConfig{
		OAuthEndpoint:  endpoint,
		ConsumerKey:    strings.TrimSpace(raw[KeyConsumerKey]),
		ConsumerSecret: raw[KeyConsumerSecret],
		DomainSuffix:   suffix,
	}, nil
}

// Domain returns the domain canonical identifiers are scoped to.
func (c ProviderConfig) Domain(serverName string) string {
	if c.DomainSuffix != "" {
		return c.DomainSuffix
	}
	return serverName
}

// String never prints the consumer secret.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("ProviderConfig{OAuthEndpoint=%q ConsumerKey=%q ConsumerSecret=%q DomainSuffix=%q}",
		c.OAuthEndpoint, c.ConsumerKey, redact(c.ConsumerSecret), c.DomainSuffix)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
