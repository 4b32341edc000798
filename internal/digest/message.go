package digest

import (
	"encoding/json"
	"errors"
	"regexp"
)

// placeholderAddress matches synthetic, non-deliverable addresses minted for
// mobile-only imports.
var placeholderAddress = regexp.MustCompile(`@mobile\.import$`)

var (
	ErrMissingEmail       = errors.New("message missing email")
	ErrPlaceholderEmail   = errors.New("message email is a mobile placeholder")
	ErrMissingDrupalUID   = errors.New("message missing drupal_uid")
	ErrNoCampaignActivity = errors.New("message has no campaign signups")
)

type MessageMergeVars struct {
	FirstName string `json:"FNAME"`
}

// SignupEntry is one campaign signup inside an inbound message. A present
// reportback marker means the user already completed the campaign and the
// signup must not appear in a digest.
type SignupEntry struct {
	NID        int64           `json:"nid"`
	Signup     int64           `json:"signup"`
	ReportBack json.RawMessage `json:"reportback,omitempty"`
}

func (s SignupEntry) HasReportBack() bool {
	return len(s.ReportBack) > 0 && string(s.ReportBack) != "null"
}

// Message is one user's digest-eligible activity as published to the queue.
type Message struct {
	Email     string           `json:"email"`
	DrupalUID int64            `json:"drupal_uid,omitempty"`
	MergeVars MessageMergeVars `json:"merge_vars"`
	Language  string           `json:"language,omitempty"`
	Campaigns []SignupEntry    `json:"campaigns"`
}

// Validate applies the structural rules. A failure here is fatal for the
// message: it can never succeed and is acked immediately.
func (m *Message) Validate() error {
	if m.Email == "" {
		return ErrMissingEmail
	}
	if placeholderAddress.MatchString(m.Email) {
		return ErrPlaceholderEmail
	}
	// The drupal uid is required later for the unsubscribe link.
	if m.DrupalUID == 0 {
		return ErrMissingDrupalUID
	}
	if len(m.Campaigns) == 0 {
		return ErrNoCampaignActivity
	}
	return nil
}
