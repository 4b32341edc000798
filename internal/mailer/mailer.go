package mailer

// Types for the bulk send-template dispatch API. One Submission covers the
// whole digest batch; the API reports per-recipient outcomes.

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

type Var struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type RecipientVars struct {
	Rcpt string `json:"rcpt"`
	Vars []Var  `json:"vars"`
}

type Submission struct {
	Subject         string          `json:"subject"`
	FromEmail       string          `json:"from_email"`
	FromName        string          `json:"from_name"`
	To              []Recipient     `json:"to"`
	GlobalMergeVars []Var           `json:"global_merge_vars"`
	MergeVars       []RecipientVars `json:"merge_vars"`
	Tags            []string        `json:"tags"`
}

const (
	StatusSent     = "sent"
	StatusQueued   = "queued"
	StatusRejected = "rejected"
	StatusInvalid  = "invalid"
)

type Result struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason,omitempty"`
	ID           string `json:"_id,omitempty"`
}

// Accepted reports whether the recipient's message was taken by the provider.
func (r Result) Accepted() bool {
	return r.Status == StatusSent || r.Status == StatusQueued
}
