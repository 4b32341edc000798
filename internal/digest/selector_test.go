package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campaignSet(picks map[int64]bool) map[int64]*Campaign {
	out := make(map[int64]*Campaign, len(picks))
	for nid, pick := range picks {
		out[nid] = &Campaign{NID: nid, Title: "t", ImageURL: "i", IsStaffPick: pick}
	}
	return out
}

func TestOrderCampaigns_StaffPicksFirstThenEarliest(t *testing.T) {
	campaigns := campaignSet(map[int64]bool{
		1: true, 2: true,
		3: false, 4: false, 5: false, 6: false, 7: false,
	})
	signups := []Signup{
		{NID: 3, SignupAt: 10},
		{NID: 1, SignupAt: 5},
		{NID: 4, SignupAt: 1},
		{NID: 5, SignupAt: 7},
		{NID: 2, SignupAt: 2},
		{NID: 6, SignupAt: 3},
		{NID: 7, SignupAt: 9},
	}

	ordered := OrderCampaigns(signups, campaigns, 5)

	require.Len(t, ordered, 5)
	// Staff picks first, each tier by earliest signup.
	assert.Equal(t, []Signup{
		{NID: 2, SignupAt: 2},
		{NID: 1, SignupAt: 5},
		{NID: 4, SignupAt: 1},
		{NID: 6, SignupAt: 3},
		{NID: 5, SignupAt: 7},
	}, ordered)
}

func TestOrderCampaigns_StableOnEqualTimestamps(t *testing.T) {
	campaigns := campaignSet(map[int64]bool{10: false, 11: false, 12: false})
	signups := []Signup{
		{NID: 10, SignupAt: 100},
		{NID: 11, SignupAt: 100},
		{NID: 12, SignupAt: 100},
	}

	ordered := OrderCampaigns(signups, campaigns, 5)

	require.Len(t, ordered, 3)
	assert.Equal(t, int64(10), ordered[0].NID)
	assert.Equal(t, int64(11), ordered[1].NID)
	assert.Equal(t, int64(12), ordered[2].NID)
}

func TestOrderCampaigns_SkipsUnresolvedCampaigns(t *testing.T) {
	campaigns := campaignSet(map[int64]bool{1: false})
	signups := []Signup{
		{NID: 99, SignupAt: 1},
		{NID: 1, SignupAt: 2},
	}

	ordered := OrderCampaigns(signups, campaigns, 5)

	require.Len(t, ordered, 1)
	assert.Equal(t, int64(1), ordered[0].NID)
}

func TestOrderCampaigns_CapDefaultsWhenZero(t *testing.T) {
	campaigns := campaignSet(map[int64]bool{1: false, 2: false, 3: false, 4: false, 5: false, 6: false})
	var signups []Signup
	for nid := int64(1); nid <= 6; nid++ {
		signups = append(signups, Signup{NID: nid, SignupAt: nid})
	}

	ordered := OrderCampaigns(signups, campaigns, 0)

	assert.Len(t, ordered, DefaultMaxCampaigns)
}
