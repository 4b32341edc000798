package rmq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QueueCounts is the broker's own bookkeeping for one queue. Unacked is the
// advisory signal that another consumer is mid-run.
type QueueCounts struct {
	Ready   int `json:"messages_ready"`
	Unacked int `json:"messages_unacknowledged"`
}

// ManagementClient reads queue counts from the RabbitMQ management API. The
// AMQP protocol itself does not expose unacknowledged counts.
type ManagementClient struct {
	baseURL  string
	vhost    string
	user     string
	password string
	client   *http.Client
}

func NewManagementClient(baseURL, vhost, user, password string) *ManagementClient {
	return &ManagementClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		vhost:    vhost,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ManagementClient) Counts(ctx context.Context, queue string) (QueueCounts, error) {
	u := fmt.Sprintf("%s/api/queues/%s/%s", c.baseURL, url.PathEscape(c.vhost), url.PathEscape(queue))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("management api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueueCounts{}, fmt.Errorf("management api returned status: %d", resp.StatusCode)
	}

	var counts QueueCounts
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return QueueCounts{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return counts, nil
}

// Unacked satisfies the worker's stats dependency.
func (c *ManagementClient) Unacked(ctx context.Context, queue string) (int, error) {
	counts, err := c.Counts(ctx, queue)
	if err != nil {
		return 0, err
	}
	return counts.Unacked, nil
}
