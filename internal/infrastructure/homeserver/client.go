// Package homeserver manages accounts through the Synapse admin API.
package homeserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const maxErrorBody = 4 << 10

// Client implements provider.AccountHandler against a running homeserver.
type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

func NewClient(baseURL, adminToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		adminToken: adminToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type externalID struct {
	AuthProvider string `json:"auth_provider"`
	ExternalID   string `json:"external_id"`
}

type upsertUserRequest struct {
	Displayname string       `json:"displayname,omitempty"`
	ExternalIDs []externalID `json:"external_ids,omitempty"`
}

type userResponse struct {
	Name        string `json:"name"`
	Displayname string `json:"displayname"`
	CreationTS  int64  `json:"creation_ts"`
	Deactivated bool   `json:"deactivated"`
}

// matrixError is the homeserver's standard error body.
type matrixError struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

func (c *Client) userURL(userID string) string {
	return c.baseURL + "/_synapse/admin/v2/users/" + url.PathEscape(userID)
}

func (c *Client) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, domain.ErrMissingField("user_id")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(userID), nil)
	if err != nil {
		return false, domain.ErrInternal(err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u userResponse
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return false, domain.ErrHomeserverUnavailable(fmt.Errorf("decode user: %w", err))
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// Register creates the account with a PUT. The admin API upserts and would
// overwrite an existing user's displayname and external_ids, so the user is
// looked up first. A 200 (rather than 201) still means someone else created
// it between the lookup and the PUT.
func (c *Client) Register(ctx context.Context, a domain.Account) (domain.Account, error) {
	if a.UserID == "" {
		return domain.Account{}, domain.ErrMissingField("user_id")
	}

	exists, err := c.CheckUserExists(ctx, a.UserID)
	if err != nil {
		return domain.Account{}, err
	}
	if exists {
		return domain.Account{}, domain.ErrAccountExists()
	}

	body, err := json.Marshal(upsertUserRequest{
		Displayname: a.RemoteUsername,
		ExternalIDs: []externalID{{
			AuthProvider: domain.LoginTypeMediaWikiOAuth,
			ExternalID:   a.RemoteUsername,
		}},
	})
	if err != nil {
		return domain.Account{}, domain.ErrInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.userURL(a.UserID), bytes.NewReader(body))
	if err != nil {
		return domain.Account{}, domain.ErrInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return domain.Account{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var u userResponse
		if err := json.NewDecoder(resp.Body).Decode(&u); err == nil && u.Name != "" {
			a.UserID = u.Name
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		return a, nil
	case http.StatusOK:
		return domain.Account{}, domain.ErrAccountExists()
	default:
		return domain.Account{}, statusError(resp)
	}
}

// Ping checks the homeserver answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_matrix/client/versions", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("homeserver versions: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrHomeserverUnavailable(err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var me matrixError
	if json.Unmarshal(raw, &me) == nil && me.ErrCode != "" {
		return domain.ErrHomeserverUnavailable(fmt.Errorf("status %d: %s: %s", resp.StatusCode, me.ErrCode, me.Error))
	}
	return domain.ErrHomeserverUnavailable(fmt.Errorf("status %d", resp.StatusCode))
}
