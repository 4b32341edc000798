package digest

import "sort"

// DefaultMaxCampaigns caps how many campaigns one digest shows per user.
const DefaultMaxCampaigns = 5

// OrderCampaigns orders a user's signups for rendering: staff picks first,
// then the rest, each tier sorted by signup time ascending with the original
// encounter order breaking ties. The result is truncated to max entries;
// anything beyond the cap is simply left out of this digest.
func OrderCampaigns(signups []Signup, campaigns map[int64]*Campaign, max int) []Signup {
	if max <= 0 {
		max = DefaultMaxCampaigns
	}

	staffPicks := make([]Signup, 0, len(signups))
	others := make([]Signup, 0, len(signups))
	for _, s := range signups {
		c, ok := campaigns[s.NID]
		if !ok {
			continue
		}
		if c.IsStaffPick {
			staffPicks = append(staffPicks, s)
		} else {
			others = append(others, s)
		}
	}

	byEarliestSignup := func(tier []Signup) {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].SignupAt < tier[j].SignupAt
		})
	}
	byEarliestSignup(staffPicks)
	byEarliestSignup(others)

	ordered := append(staffPicks, others...)
	if len(ordered) > max {
		ordered = ordered[:max]
	}
	return ordered
}
