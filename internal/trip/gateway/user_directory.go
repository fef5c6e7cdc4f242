package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UserDirectoryClient checks passenger profiles against the user service.
type UserDirectoryClient struct {
	baseURL string
	http    *http.Client
}

func NewUserDirectoryClient(baseURL string, timeout time.Duration) *UserDirectoryClient {
	return &UserDirectoryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *UserDirectoryClient) ProfileExists(ctx context.Context, userID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/profile", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("profile lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return body.Exists, nil
}
