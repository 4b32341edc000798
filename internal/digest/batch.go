package digest

// Signup is a user's retained interest in one resolved campaign.
type Signup struct {
	NID      int64
	SignupAt int64
}

// User is one aggregated recipient. DeliveryTag is kept so the original queue
// message can be acknowledged once the batch outcome is known.
type User struct {
	Email       string
	FirstName   string
	Language    string
	DrupalUID   int64
	Signups     []Signup
	DeliveryTag uint64
}

// BatchState accumulates one flush worth of users and the campaigns they
// reference. It is owned by the controller for the duration of the batch and
// discarded whole at the flush boundary.
type BatchState struct {
	users     map[string]*User
	order     []string
	campaigns map[int64]*Campaign
}

func NewBatchState() *BatchState {
	return &BatchState{
		users:     make(map[string]*User),
		campaigns: make(map[int64]*Campaign),
	}
}

func (b *BatchState) HasUser(email string) bool {
	_, ok := b.users[email]
	return ok
}

func (b *BatchState) AddUser(u *User) {
	if _, ok := b.users[u.Email]; ok {
		return
	}
	b.users[u.Email] = u
	b.order = append(b.order, u.Email)
}

// Users returns the aggregated users in the order they were first seen.
func (b *BatchState) Users() []*User {
	out := make([]*User, 0, len(b.order))
	for _, email := range b.order {
		out = append(out, b.users[email])
	}
	return out
}

// Waiting is the flush-trigger input: how many users are accumulated.
func (b *BatchState) Waiting() int {
	return len(b.users)
}

func (b *BatchState) RecordCampaign(c *Campaign) {
	b.campaigns[c.NID] = c
}

func (b *BatchState) Campaign(nid int64) (*Campaign, bool) {
	c, ok := b.campaigns[nid]
	return c, ok
}

func (b *BatchState) Campaigns() map[int64]*Campaign {
	return b.campaigns
}
