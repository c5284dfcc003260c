package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func stubConfig(t *testing.T, cfg *config.Config, err error) {
	t.Helper()
	orig := loadConfig
	loadConfig = func() (*config.Config, error) { return cfg, err }
	t.Cleanup(func() { loadConfig = orig })
}

func TestLoginTypes(t *testing.T) {
	out, err := run(t, "login-types")
	require.NoError(t, err)
	assert.JSONEq(t, `{"flows":[{"type":"org.wikimedia.oauth_v1","params":["request_key","request_secret","oauth_query"]}]}`, out)
}

func TestCheckConfig_PrintsRedacted(t *testing.T) {
	pc, err := config.ParseProviderConfig(map[string]string{
		config.KeyConsumerKey:    "ck",
		config.KeyConsumerSecret: "super-secret",
	})
	require.NoError(t, err)
	stubConfig(t, &config.Config{
		Env:            "prod",
		ServerName:     "example.org",
		Provider:       pc,
		AccountBackend: config.BackendPostgres,
		DBAddr:         "postgres://mwauth:hunter2@db:5432/mwauth",
		InternalSecret: "internal-secret",
	}, nil)

	out, err := run(t, "check-config")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "example.org", got["server_name"])
	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "internal-secret")
}

func TestCheckConfig_LoadError(t *testing.T) {
	stubConfig(t, nil, errors.New("missing required env var: SERVER_NAME"))

	_, err := run(t, "check-config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_NAME")
}

func TestAccount_RequiresPostgresBackend(t *testing.T) {
	stubConfig(t, &config.Config{AccountBackend: config.BackendHomeserver}, nil)

	_, err := run(t, "account", "@alice:example.org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestAccount_RequiresUserID(t *testing.T) {
	_, err := run(t, "account")
	require.Error(t, err)
}
