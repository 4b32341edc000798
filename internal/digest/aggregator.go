package digest

import (
	"context"

	"github.com/Mutter0815/DigestMailer/pkg/logx"
)

// Disposition is the classified outcome of ingesting one queue message.
// Every consumed message ends up with exactly one.
type Disposition string

const (
	DispositionAggregated       Disposition = "aggregated"
	DispositionMalformed        Disposition = "malformed"
	DispositionDuplicate        Disposition = "duplicate"
	DispositionNoValidCampaigns Disposition = "no_valid_campaigns"
	DispositionUserNotFound     Disposition = "user_not_found"
	DispositionEmptyContent     Disposition = "empty_content"
	DispositionDispatched       Disposition = "dispatched"
)

// Aggregator builds User records out of inbound messages, resolving campaign
// content through the per-run cache.
type Aggregator struct {
	cache *CampaignCache
}

func NewAggregator(cache *CampaignCache) *Aggregator {
	return &Aggregator{cache: cache}
}

// Ingest classifies one message against the current batch. Only
// DispositionAggregated leaves the message unacked; every other disposition
// means the message can never succeed and should be acked right away.
func (a *Aggregator) Ingest(ctx context.Context, batch *BatchState, msg *Message, tag uint64) Disposition {
	if err := msg.Validate(); err != nil {
		logx.L().Infow("message_disqualified", "reason", err.Error(), "email", msg.Email)
		return DispositionMalformed
	}

	if batch.HasUser(msg.Email) {
		logx.L().Infow("message_disqualified", "reason", "duplicate email", "email", msg.Email)
		return DispositionDuplicate
	}

	user := &User{
		Email:       msg.Email,
		FirstName:   msg.MergeVars.FirstName,
		Language:    msg.Language,
		DrupalUID:   msg.DrupalUID,
		DeliveryTag: tag,
	}

	for _, entry := range msg.Campaigns {
		// Report-backs should have been filtered by the producer; re-check.
		if entry.HasReportBack() {
			logx.L().Debugw("signup_skipped_reportback", "email", msg.Email, "nid", entry.NID)
			continue
		}

		campaign, fetchErr := a.cache.Get(ctx, entry.NID)
		if fetchErr != nil {
			logx.L().Warnw("campaign_unusable", "nid", fetchErr.NID, "reason", string(fetchErr.Reason))
			continue
		}

		batch.RecordCampaign(campaign)
		user.Signups = append(user.Signups, Signup{NID: entry.NID, SignupAt: entry.Signup})
	}

	if len(user.Signups) == 0 {
		logx.L().Infow("message_disqualified", "reason", "no valid campaigns", "email", msg.Email)
		return DispositionNoValidCampaigns
	}

	batch.AddUser(user)
	return DispositionAggregated
}
