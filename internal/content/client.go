package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrNotFound means the content item does not exist.
	ErrNotFound = errors.New("content not found")
	// ErrRejected means the API refused the request, typically because the
	// campaign is no longer published.
	ErrRejected = errors.New("content api rejected request")
)

// StaffPick tolerates the API returning either a JSON bool or the string
// "true"/"false".
type StaffPick bool

func (s *StaffPick) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`, `"1"`:
		*s = true
	default:
		*s = false
	}
	return nil
}

type Image struct {
	Src string `json:"src"`
}

type Step struct {
	Header string `json:"header"`
	Copy   string `json:"copy"`
}

// Response is the content API payload for a single campaign item.
type Response struct {
	NID          int64     `json:"nid"`
	Title        string    `json:"title"`
	ImageCover   Image     `json:"image_cover"`
	CallToAction string    `json:"call_to_action"`
	IsStaffPick  StaffPick `json:"is_staff_pick"`
	StepPre      []Step    `json:"step_pre"`
	LatestNews   string    `json:"latest_news_copy"`
	FactProblem  string    `json:"fact_problem"`
	FactSolution string    `json:"fact_solution"`
}

type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewClient(baseURL string) *Client {
	settings := gobreaker.Settings{
		Name:     "content-api",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.5
		},
		// Permanent per-item answers must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrRejected)
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

// Fetch retrieves one campaign content item. ErrNotFound and ErrRejected are
// permanent for the item; any other error is a transport failure.
func (c *Client) Fetch(ctx context.Context, nid int64) (*Response, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, nid)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) fetch(ctx context.Context, nid int64) (*Response, error) {
	u := fmt.Sprintf("%s/api/v1/content/%d", c.baseURL, nid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content api request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrRejected
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
