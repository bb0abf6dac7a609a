// clan-progression-service/services/grant_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"clan-progression-service/models"
	"clan-progression-service/utils"

	"github.com/gosimple/slug"
)

// Granter is the home-platform role service holding the local rank
// representation. Grant and Revoke are idempotent.
type Granter interface {
	Grant(ctx context.Context, memberID, key string) error
	Revoke(ctx context.Context, memberID, key string) error
	Held(ctx context.Context, memberID string) ([]string, error)
}

// RoleKey derives the grant key for a ladder step from its display name.
func RoleKey(r models.Rank) string {
	return slug.Make(r.Name)
}

type GrantClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Log     *slog.Logger
}

func NewGrantClient(baseURL, token string, log *slog.Logger) *GrantClient {
	return &GrantClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
		Log:     log,
	}
}

// Grant assigns a role key to the member. Granting a key the member already
// holds is a no-op.
func (c *GrantClient) Grant(ctx context.Context, memberID, key string) error {
	url := fmt.Sprintf("%s/v1/members/%s/grants", c.BaseURL, memberID)

	jsonData, _ := json.Marshal(map[string]interface{}{"key": key})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return &ExternalServiceError{Service: "grant service", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil // already held
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimited(resp)
	case resp.StatusCode >= 300:
		c.Log.Warn("grant failed", "member", memberID, "key", key, "status", resp.StatusCode, "body", string(body))
		return &ExternalServiceError{Service: "grant service", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// Revoke removes a role key from the member. Revoking a key the member does
// not hold is a no-op.
func (c *GrantClient) Revoke(ctx context.Context, memberID, key string) error {
	url := fmt.Sprintf("%s/v1/members/%s/grants/%s", c.BaseURL, memberID, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return &ExternalServiceError{Service: "grant service", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil // not held
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimited(resp)
	case resp.StatusCode >= 300:
		c.Log.Warn("revoke failed", "member", memberID, "key", key, "status", resp.StatusCode, "body", string(body))
		return &ExternalServiceError{Service: "grant service", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// Held lists the role keys the member currently holds.
func (c *GrantClient) Held(ctx context.Context, memberID string) ([]string, error) {
	url := fmt.Sprintf("%s/v1/members/%s/grants", c.BaseURL, memberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &ExternalServiceError{Service: "grant service", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil // member unknown to the role service, nothing held
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimited(resp)
	case resp.StatusCode != http.StatusOK:
		c.Log.Warn("grant listing failed", "member", memberID, "status", resp.StatusCode, "body", string(body))
		return nil, &ExternalServiceError{Service: "grant service", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ExternalServiceError{Service: "grant service", Err: err}
	}
	return out.Keys, nil
}
