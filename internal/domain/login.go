package domain

import "time"

// LoginTypeMediaWikiOAuth is the custom login type advertised to the homeserver.
const LoginTypeMediaWikiOAuth = "org.wikimedia.oauth_v1"

// Parameter names a client must send with LoginTypeMediaWikiOAuth, in order.
const (
	ParamRequestKey    = "request_key"
	ParamRequestSecret = "request_secret"
	ParamOAuthQuery    = "oauth_query"
)

// LoginTypeParams returns a fresh copy so callers cannot mutate the table.
func LoginTypeParams() []string {
	return []string{ParamRequestKey, ParamRequestSecret, ParamOAuthQuery}
}

// RemoteIdentity is what the wiki vouches for after a completed handshake.
// Username is the only field trusted for reconciliation.
type RemoteIdentity struct {
	Username  string
	Sub       int64
	Issuer    string
	EditCount int64
	Blocked   bool
	Groups    []string
}

// Account is a provisioned local account.
type Account struct {
	UserID         string
	Localpart      string
	RemoteUsername string
	CreatedAt      time.Time
}
