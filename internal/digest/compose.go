package digest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Mutter0815/DigestMailer/internal/mailer"
	"github.com/Mutter0815/DigestMailer/internal/userapi"
	"github.com/Mutter0815/DigestMailer/pkg/logx"
)

// LinkGenerator resolves the per-user subscriptions (unsubscribe) link.
// Implementations report a missing account with userapi.ErrUserNotFound.
type LinkGenerator interface {
	SubscriptionsLink(ctx context.Context, email string, uid int64) (string, error)
}

type Composer struct {
	links        LinkGenerator
	maxCampaigns int
	fromEmail    string
	fromName     string
}

func NewComposer(links LinkGenerator, maxCampaigns int, fromEmail, fromName string) *Composer {
	if maxCampaigns <= 0 {
		maxCampaigns = DefaultMaxCampaigns
	}
	return &Composer{
		links:        links,
		maxCampaigns: maxCampaigns,
		fromEmail:    fromEmail,
		fromName:     fromName,
	}
}

// AckNow marks a user whose message is permanently settled at compose time
// and must be acknowledged before dispatch.
type AckNow struct {
	User        *User
	Disposition Disposition
}

// ComposeResult splits the batch three ways: users in the submission, users
// settled permanently at compose time, and users deferred to the next run
// because link generation was unavailable.
type ComposeResult struct {
	Submission *mailer.Submission
	Included   []*User
	AckNow     []AckNow
	Deferred   []*User
}

// Compose renders the outbound submission from the accumulated batch.
func (c *Composer) Compose(ctx context.Context, batch *BatchState, memberCount string, now time.Time) *ComposeResult {
	res := &ComposeResult{}

	campaigns := batch.Campaigns()

	// Render each campaign block once; every user referencing the campaign
	// reuses the same content.
	nids := make([]int64, 0, len(campaigns))
	for nid := range campaigns {
		nids = append(nids, nid)
	}
	sort.Slice(nids, func(i, j int) bool { return nids[i] < nids[j] })

	rendered := make(map[int64]string, len(nids))
	globalVars := make([]mailer.Var, 0, len(nids)+1)
	for _, nid := range nids {
		block := RenderCampaign(campaigns[nid])
		rendered[nid] = block
		globalVars = append(globalVars, mailer.Var{
			Name:    fmt.Sprintf("campaign-%d", nid),
			Content: block,
		})
	}
	globalVars = append(globalVars, mailer.Var{Name: "MEMBER_COUNT", Content: memberCount})

	sub := &mailer.Submission{
		Subject:         SubjectForDate(now),
		FromEmail:       c.fromEmail,
		FromName:        c.fromName,
		GlobalMergeVars: globalVars,
		Tags:            []string{"digest"},
	}

	for _, user := range batch.Users() {
		ordered := OrderCampaigns(user.Signups, campaigns, c.maxCampaigns)

		blocks := make([]string, 0, len(ordered))
		for _, s := range ordered {
			if block, ok := rendered[s.NID]; ok {
				blocks = append(blocks, block)
			}
		}
		content := strings.Join(blocks, Divider())

		if content == "" {
			logx.L().Infow("user_excluded", "reason", "empty content", "email", user.Email)
			res.AckNow = append(res.AckNow, AckNow{User: user, Disposition: DispositionEmptyContent})
			continue
		}

		link, err := c.links.SubscriptionsLink(ctx, user.Email, user.DrupalUID)
		if errors.Is(err, userapi.ErrUserNotFound) {
			logx.L().Infow("user_excluded", "reason", "user not found", "email", user.Email)
			res.AckNow = append(res.AckNow, AckNow{User: user, Disposition: DispositionUserNotFound})
			continue
		}
		if err != nil {
			// Transient: leave the message unacked so the next run retries.
			logx.L().Warnw("subscriptions_link_error", "email", user.Email, "error", err)
			res.Deferred = append(res.Deferred, user)
			continue
		}

		sub.To = append(sub.To, mailer.Recipient{
			Email: user.Email,
			Name:  user.FirstName,
			Type:  "to",
		})
		sub.MergeVars = append(sub.MergeVars, mailer.RecipientVars{
			Rcpt: user.Email,
			Vars: []mailer.Var{
				{Name: "FNAME", Content: user.FirstName},
				{Name: "CAMPAIGNS", Content: content},
				{Name: "SUBSCRIPTIONS_LINK", Content: link},
			},
		})
		res.Included = append(res.Included, user)
	}

	res.Submission = sub
	return res
}
