package digest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Mutter0815/DigestMailer/internal/content"
)

// ErrorKind classifies why a campaign could not be turned into digest content.
type ErrorKind string

const (
	KindMissingField ErrorKind = "missing required field"
	KindRejected     ErrorKind = "api rejected"
	KindNotFound     ErrorKind = "not found"
	KindUnreachable  ErrorKind = "unreachable"
)

// FetchError is the per-campaign failure result. It is a value, not a Go
// error: campaign failures are routine and never abort the run.
type FetchError struct {
	NID    int64
	Reason ErrorKind
}

// Campaign is the immutable, per-run view of one campaign's content. Shared
// by reference across every user that signed up for it.
type Campaign struct {
	NID           int64
	Title         string
	IsStaffPick   bool
	URL           string
	ImageURL      string
	CallToAction  string
	ProblemFact   string
	SolutionFact  string
	DuringTipHead string
	DuringTipBody string
	LatestNews    string
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

// campaignFromContent builds a Campaign from a content API response. A
// missing title or cover image makes the whole campaign unusable.
func campaignFromContent(nid int64, resp *content.Response, siteURL string) (*Campaign, bool) {
	if resp.Title == "" || resp.ImageCover.Src == "" {
		return nil, false
	}

	c := &Campaign{
		NID:          nid,
		Title:        resp.Title,
		IsStaffPick:  bool(resp.IsStaffPick),
		URL:          fmt.Sprintf("%s/node/%d#prove", strings.TrimRight(siteURL, "/"), nid),
		ImageURL:     resp.ImageCover.Src,
		CallToAction: resp.CallToAction,
		ProblemFact:  resp.FactProblem,
		SolutionFact: resp.FactSolution,
		LatestNews:   stripTags(resp.LatestNews),
	}
	if len(resp.StepPre) > 0 {
		c.DuringTipHead = resp.StepPre[0].Header
		c.DuringTipBody = stripTags(resp.StepPre[0].Copy)
	}
	return c, true
}
