package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mutter0815/DigestMailer/internal/content"
	"github.com/Mutter0815/DigestMailer/internal/digest"
	"github.com/Mutter0815/DigestMailer/internal/mailer"
	"github.com/Mutter0815/DigestMailer/pkg/rmq"
)

type fakeQueue struct {
	deliveries []rmq.Delivery
	pos        int
	acked      []uint64
	closed     bool
}

func (q *fakeQueue) Get() (rmq.Delivery, bool, error) {
	if q.pos >= len(q.deliveries) {
		return rmq.Delivery{}, false, nil
	}
	d := q.deliveries[q.pos]
	q.pos++
	return d, true, nil
}

func (q *fakeQueue) Ready() (int, error) {
	return len(q.deliveries) - q.pos, nil
}

func (q *fakeQueue) Ack(tag uint64) error {
	q.acked = append(q.acked, tag)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

type fakeOpener struct{ q *fakeQueue }

func (o fakeOpener) Open() (Queue, error) { return o.q, nil }

type fakeStats struct {
	unacked int
	err     error
}

func (s fakeStats) Unacked(ctx context.Context, queue string) (int, error) {
	return s.unacked, s.err
}

type fakeContent struct {
	calls map[int64]int
}

func (f *fakeContent) Fetch(ctx context.Context, nid int64) (*content.Response, error) {
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[nid]++
	return &content.Response{
		NID:        nid,
		Title:      "Campaign",
		ImageCover: content.Image{Src: "https://img.example.org/c.jpg"},
	}, nil
}

type fakeLinks struct{}

func (fakeLinks) SubscriptionsLink(ctx context.Context, email string, uid int64) (string, error) {
	return "https://www.example.org/unsubscribe", nil
}

type fakeMembers struct{ calls int }

func (m *fakeMembers) MemberCount(ctx context.Context) (int64, error) {
	m.calls++
	return 5400000, nil
}

type fakeDispatch struct {
	calls       []*mailer.Submission
	err         error
	resultsFunc func(sub *mailer.Submission) []mailer.Result
}

func (d *fakeDispatch) Send(ctx context.Context, sub *mailer.Submission) ([]mailer.Result, error) {
	d.calls = append(d.calls, sub)
	if d.err != nil {
		return nil, d.err
	}
	if d.resultsFunc != nil {
		return d.resultsFunc(sub), nil
	}
	results := make([]mailer.Result, 0, len(sub.To))
	for _, to := range sub.To {
		results = append(results, mailer.Result{Email: to.Email, Status: mailer.StatusSent})
	}
	return results, nil
}

func delivery(t *testing.T, tag uint64, email string, nids ...int64) rmq.Delivery {
	t.Helper()
	msg := digest.Message{
		Email:     email,
		DrupalUID: 1000 + int64(tag),
		MergeVars: digest.MessageMergeVars{FirstName: "Ann"},
	}
	for i, nid := range nids {
		msg.Campaigns = append(msg.Campaigns, digest.SignupEntry{NID: nid, Signup: int64(100 + i)})
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return rmq.Delivery{Body: body, Tag: tag}
}

func newTestWorker(q *fakeQueue, stats Stats, dispatch *fakeDispatch) (*Worker, *fakeContent, *fakeMembers) {
	fc := &fakeContent{}
	fm := &fakeMembers{}
	w := New(
		Config{
			Queue:        "user_digest",
			BatchSize:    500,
			MaxCampaigns: 5,
			SiteURL:      "https://www.example.org",
			FromEmail:    "noreply@example.org",
			FromName:     "The Campaign Team",
		},
		fakeOpener{q: q},
		stats,
		fc,
		fakeLinks{},
		fm,
		dispatch,
	)
	return w, fc, fm
}

func TestShouldFlush(t *testing.T) {
	tests := []struct {
		waiting, ready, batchSize int
		want                      bool
	}{
		{0, 0, 500, false},
		{3, 10, 500, false},
		{3, 0, 500, true},
		{500, 10, 500, true},
		{501, 10, 500, true},
		{499, 1, 500, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldFlush(tt.waiting, tt.ready, tt.batchSize),
			"waiting=%d ready=%d batchSize=%d", tt.waiting, tt.ready, tt.batchSize)
	}
}

func TestRunOnce_RefusesWhileAnotherConsumerActive(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{delivery(t, 1, "a@x.com", 10)}}
	dispatch := &fakeDispatch{}
	w, _, _ := newTestWorker(q, fakeStats{unacked: 2}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, q.pos, "no messages may be pulled while another run is in flight")
	assert.Empty(t, dispatch.calls)
	require.NotNil(t, w.LastRun())
	assert.True(t, w.LastRun().Skipped)
}

func TestRunOnce_DrainsAggregatesAndDispatches(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{
		delivery(t, 1, "a@x.com", 10),
		delivery(t, 2, "b@x.com", 10, 11),
	}}
	dispatch := &fakeDispatch{}
	w, fc, fm := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, dispatch.calls, 1)
	sub := dispatch.calls[0]
	require.Len(t, sub.To, 2)

	// Both messages acked exactly once, after dispatch.
	assert.ElementsMatch(t, []uint64{1, 2}, q.acked)
	assert.True(t, q.closed)

	// Shared campaign fetched once, member count fetched once per run.
	assert.Equal(t, 1, fc.calls[10])
	assert.Equal(t, 1, fm.calls)

	summary := w.LastRun()
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Consumed)
	assert.Equal(t, 2, summary.Aggregated)
	assert.Equal(t, 2, summary.Dispatched)
}

func TestRunOnce_MalformedAckedImmediately(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{
		{Body: []byte("not json"), Tag: 1},
		delivery(t, 2, "", 10), // missing email
	}}
	dispatch := &fakeDispatch{}
	w, _, _ := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, q.acked)
	assert.Empty(t, dispatch.calls, "nothing to dispatch")
	assert.Equal(t, 2, w.LastRun().Acked[string(digest.DispositionMalformed)])
}

func TestRunOnce_DuplicateAcked(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{
		delivery(t, 1, "a@x.com", 10),
		delivery(t, 2, "a@x.com", 11),
	}}
	dispatch := &fakeDispatch{}
	w, _, _ := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, dispatch.calls, 1)
	assert.Len(t, dispatch.calls[0].To, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, q.acked)
	assert.Equal(t, 1, w.LastRun().Acked[string(digest.DispositionDuplicate)])
}

func TestRunOnce_DispatchTransportErrorAcksNothing(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{
		delivery(t, 1, "a@x.com", 10),
		delivery(t, 2, "b@x.com", 10),
	}}
	dispatch := &fakeDispatch{err: errors.New("connection reset")}
	w, _, _ := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.Error(t, err)
	assert.Empty(t, q.acked, "whole-batch failure must acknowledge nothing")
	assert.True(t, q.closed, "channel close requeues the batch")
}

func TestRunOnce_PartialRejectionLeavesRecipientUnacked(t *testing.T) {
	q := &fakeQueue{deliveries: []rmq.Delivery{
		delivery(t, 1, "ok@x.com", 10),
		delivery(t, 2, "bad@x.com", 10),
		delivery(t, 3, "missing@x.com", 10),
	}}
	dispatch := &fakeDispatch{
		resultsFunc: func(sub *mailer.Submission) []mailer.Result {
			// One success, one rejection, one omitted from the report.
			return []mailer.Result{
				{Email: "ok@x.com", Status: mailer.StatusSent},
				{Email: "bad@x.com", Status: mailer.StatusRejected, RejectReason: "hard-bounce"},
			}
		},
	}
	w, _, _ := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, q.acked)
	summary := w.LastRun()
	assert.Equal(t, 1, summary.Dispatched)
	assert.Equal(t, 2, summary.Deferred)
}

func TestRunOnce_EmptyQueueIsNoop(t *testing.T) {
	q := &fakeQueue{}
	dispatch := &fakeDispatch{}
	w, _, fm := newTestWorker(q, fakeStats{}, dispatch)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Empty(t, dispatch.calls)
	assert.Empty(t, q.acked)
	assert.Zero(t, fm.calls)
}

func TestRunOnce_FlushesAtBatchSizeMidDrain(t *testing.T) {
	var deliveries []rmq.Delivery
	deliveries = append(deliveries,
		delivery(t, 1, "a@x.com", 10),
		delivery(t, 2, "b@x.com", 10),
		delivery(t, 3, "c@x.com", 10),
	)
	q := &fakeQueue{deliveries: deliveries}
	dispatch := &fakeDispatch{}
	fc := &fakeContent{}
	fm := &fakeMembers{}
	w := New(
		Config{Queue: "user_digest", BatchSize: 2, MaxCampaigns: 5, SiteURL: "https://www.example.org"},
		fakeOpener{q: q}, fakeStats{}, fc, fakeLinks{}, fm, dispatch,
	)

	err := w.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, dispatch.calls, 2, "full batch mid-drain plus undersized final batch")
	assert.Len(t, dispatch.calls[0].To, 2)
	assert.Len(t, dispatch.calls[1].To, 1)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, q.acked)
	assert.Equal(t, 1, fm.calls, "member count fetched once per run, not per flush")
}

func TestRunOnce_StatsErrorFailsRun(t *testing.T) {
	q := &fakeQueue{}
	dispatch := &fakeDispatch{}
	w, _, _ := newTestWorker(q, fakeStats{err: errors.New("mgmt api down")}, dispatch)

	err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, q.pos)
}
