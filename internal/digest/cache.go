package digest

import (
	"context"
	"errors"

	"github.com/Mutter0815/DigestMailer/internal/content"
	"github.com/Mutter0815/DigestMailer/pkg/metrics"
)

// ContentFetcher is the content API dependency of the cache.
type ContentFetcher interface {
	Fetch(ctx context.Context, nid int64) (*content.Response, error)
}

// CampaignCache memoizes campaign lookups for one run. Both successes and
// failures are cached: the content API is fetched at most once per nid per
// run, which matters for cost and idempotent retries, not just latency.
type CampaignCache struct {
	fetcher   ContentFetcher
	siteURL   string
	campaigns map[int64]*Campaign
	failures  map[int64]ErrorKind
}

func NewCampaignCache(fetcher ContentFetcher, siteURL string) *CampaignCache {
	return &CampaignCache{
		fetcher:   fetcher,
		siteURL:   siteURL,
		campaigns: make(map[int64]*Campaign),
		failures:  make(map[int64]ErrorKind),
	}
}

// Get returns the campaign for nid, or the cached reason it is unusable.
func (c *CampaignCache) Get(ctx context.Context, nid int64) (*Campaign, *FetchError) {
	if campaign, ok := c.campaigns[nid]; ok {
		return campaign, nil
	}
	if reason, ok := c.failures[nid]; ok {
		return nil, &FetchError{NID: nid, Reason: reason}
	}

	metrics.CampaignFetches.Inc()
	resp, err := c.fetcher.Fetch(ctx, nid)
	if err != nil {
		reason := KindUnreachable
		switch {
		case errors.Is(err, content.ErrNotFound):
			reason = KindNotFound
		case errors.Is(err, content.ErrRejected):
			reason = KindRejected
		}
		return nil, c.fail(nid, reason)
	}

	campaign, ok := campaignFromContent(nid, resp, c.siteURL)
	if !ok {
		return nil, c.fail(nid, KindMissingField)
	}

	c.campaigns[nid] = campaign
	return campaign, nil
}

func (c *CampaignCache) fail(nid int64, reason ErrorKind) *FetchError {
	c.failures[nid] = reason
	metrics.CampaignFetchErrors.WithLabelValues(string(reason)).Inc()
	return &FetchError{NID: nid, Reason: reason}
}

// Failures reports every campaign that could not be fetched this run, for
// operational reporting.
func (c *CampaignCache) Failures() map[int64]ErrorKind {
	out := make(map[int64]ErrorKind, len(c.failures))
	for nid, reason := range c.failures {
		out[nid] = reason
	}
	return out
}
