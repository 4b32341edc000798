package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client submits batches to a send-template style transactional API.
type Client struct {
	baseURL  string
	key      string
	template string
	client   *http.Client
}

func NewClient(baseURL, key, template string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		key:      key,
		template: template,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type sendTemplateRequest struct {
	Key             string      `json:"key"`
	TemplateName    string      `json:"template_name"`
	TemplateContent []Var       `json:"template_content"`
	Message         *Submission `json:"message"`
}

// Send submits the batch. Any error is a whole-batch transport failure; the
// caller must acknowledge nothing from the flush.
func (c *Client) Send(ctx context.Context, sub *Submission) ([]Result, error) {
	payload := sendTemplateRequest{
		Key:          c.key,
		TemplateName: c.template,
		// The template body is managed on the provider side; the main region
		// is submitted blank.
		TemplateContent: []Var{{Name: "main", Content: ""}},
		Message:         sub,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	u := c.baseURL + "/messages/send-template"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dispatch api returned status: %d", resp.StatusCode)
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return results, nil
}
