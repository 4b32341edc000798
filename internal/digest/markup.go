package digest

import (
	_ "embed"
	"strings"
)

//go:embed templates/campaign-markup.html
var campaignMarkup string

//go:embed templates/campaign-divider.html
var dividerMarkup string

const (
	tipTitleNews    = "News from the team:"
	tipTitleDefault = "Tip from the team:"
)

// RenderCampaign substitutes one campaign's fields into the block template.
// Unset optional fields render as empty strings.
func RenderCampaign(c *Campaign) string {
	tipTitle, tipBody := tipContent(c)

	r := strings.NewReplacer(
		"*|CAMPAIGN_IMAGE_URL|*", c.ImageURL,
		"*|CAMPAIGN_TITLE|*", c.Title,
		"*|CAMPAIGN_LINK|*", c.URL,
		"*|CALL_TO_ACTION|*", c.CallToAction,
		"*|FACT_PROBLEM|*", c.ProblemFact,
		"*|FACT_SOLUTION|*", c.SolutionFact,
		"*|TIP_TITLE|*", tipTitle,
		"*|DURING_TIP|*", tipBody,
	)
	return r.Replace(campaignMarkup)
}

// tipContent picks the tip block: latest news overrides everything, else the
// campaign's own tip with its header (or a stock label), else nothing.
func tipContent(c *Campaign) (title, body string) {
	if c.LatestNews != "" {
		return tipTitleNews, c.LatestNews
	}
	if c.DuringTipBody != "" {
		if c.DuringTipHead != "" {
			return c.DuringTipHead + ":", c.DuringTipBody
		}
		return tipTitleDefault, c.DuringTipBody
	}
	return "", ""
}

// Divider returns the fixed markup placed between a user's campaign blocks.
func Divider() string {
	return dividerMarkup
}
