// clan-progression-service/services/group_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"clan-progression-service/models"
	"clan-progression-service/utils"
)

// ErrNotInGroup is returned when the account holds no rank in the group.
var ErrNotInGroup = errors.New("account is not a group member")

// GroupDirectory is the external group platform, the authority for rank
// identity. Points never live there.
type GroupDirectory interface {
	FetchRank(ctx context.Context, account string) (models.GroupRank, error)
	PushRank(ctx context.Context, account string, rankRef int) error
	ListRanks(ctx context.Context) ([]models.GroupRank, error)
	VerifyCredentials(ctx context.Context) error
}

type GroupClient struct {
	BaseURL string
	GroupID string
	Token   string
	Client  *http.Client
	Log     *slog.Logger
}

func NewGroupClient(baseURL, groupID, token string, log *slog.Logger) *GroupClient {
	return &GroupClient{
		BaseURL: baseURL,
		GroupID: groupID,
		Token:   token,
		Client:  utils.HTTPClient,
		Log:     log,
	}
}

// FetchRank reads the account's current rank descriptor from the group.
func (c *GroupClient) FetchRank(ctx context.Context, account string) (models.GroupRank, error) {
	url := fmt.Sprintf("%s/v1/groups/%s/members/%s/rank", c.BaseURL, c.GroupID, account)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.GroupRank{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return models.GroupRank{}, &ExternalServiceError{Service: "group platform", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.GroupRank{}, ErrNotInGroup
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.GroupRank{}, rateLimited(resp)
	case resp.StatusCode != http.StatusOK:
		c.Log.Warn("group platform rank fetch failed", "account", account, "status", resp.StatusCode, "body", string(body))
		return models.GroupRank{}, &ExternalServiceError{Service: "group platform", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out models.GroupRank
	if err := json.Unmarshal(body, &out); err != nil {
		return models.GroupRank{}, &ExternalServiceError{Service: "group platform", Err: err}
	}
	return out, nil
}

// PushRank moves the account to the rank identified by rankRef.
func (c *GroupClient) PushRank(ctx context.Context, account string, rankRef int) error {
	url := fmt.Sprintf("%s/v1/groups/%s/members/%s/rank", c.BaseURL, c.GroupID, account)

	jsonData, _ := json.Marshal(map[string]interface{}{"rank_ref": rankRef})

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return &ExternalServiceError{Service: "group platform", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotInGroup
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimited(resp)
	case resp.StatusCode >= 300:
		c.Log.Warn("group platform rank push failed", "account", account, "status", resp.StatusCode, "body", string(body))
		return &ExternalServiceError{Service: "group platform", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// ListRanks returns the group's full rank roster.
func (c *GroupClient) ListRanks(ctx context.Context) ([]models.GroupRank, error) {
	url := fmt.Sprintf("%s/v1/groups/%s/ranks", c.BaseURL, c.GroupID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &ExternalServiceError{Service: "group platform", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimited(resp)
	case resp.StatusCode != http.StatusOK:
		c.Log.Warn("group platform rank listing failed", "status", resp.StatusCode, "body", string(body))
		return nil, &ExternalServiceError{Service: "group platform", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		Ranks []models.GroupRank `json:"ranks"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ExternalServiceError{Service: "group platform", Err: err}
	}
	return out.Ranks, nil
}

// VerifyCredentials confirms the configured token still authenticates. Called
// once at startup so a dead token fails loudly instead of desyncing quietly.
func (c *GroupClient) VerifyCredentials(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/session", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return &ExternalServiceError{Service: "group platform", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ExternalServiceError{Service: "group platform", Err: fmt.Errorf("session check returned %d: %s", resp.StatusCode, string(body))}
	}

	var out struct {
		Account string `json:"account"`
	}
	if err := json.Unmarshal(body, &out); err == nil && out.Account != "" {
		c.Log.Info("✅ authenticated to group platform", "account", out.Account)
	}
	return nil
}

func rateLimited(resp *http.Response) error {
	var after time.Duration
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			after = time.Duration(secs) * time.Second
		}
	}
	return &RateLimitedError{RetryAfter: after}
}
