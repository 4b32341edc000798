package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUserNotFound means the user API has no account for the given email/uid.
// There is nothing to retry.
var ErrUserNotFound = errors.New("user not found")

// Client talks to the user API: subscriptions-link generation and the live
// member count.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type linkResponse struct {
	URL string `json:"url"`
}

// SubscriptionsLink resolves the per-user unsubscribe/settings URL.
func (c *Client) SubscriptionsLink(ctx context.Context, email string, uid int64) (string, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("uid", strconv.FormatInt(uid, 10))
	u := fmt.Sprintf("%s/api/v1/user/subscriptions-link?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("user api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("user api returned status: %d", resp.StatusCode)
	}

	var out linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("user api returned empty link")
	}
	return out.URL, nil
}

type countResponse struct {
	Count int64 `json:"count"`
}

// MemberCount returns the live membership figure, used once per run.
func (c *Client) MemberCount(ctx context.Context) (int64, error) {
	u := c.baseURL + "/api/v1/member-count"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("user api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("user api returned status: %d", resp.StatusCode)
	}

	var out countResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Count, nil
}
