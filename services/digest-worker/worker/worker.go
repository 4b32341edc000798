package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Mutter0815/DigestMailer/internal/digest"
	"github.com/Mutter0815/DigestMailer/internal/mailer"
	"github.com/Mutter0815/DigestMailer/pkg/logx"
	"github.com/Mutter0815/DigestMailer/pkg/metrics"
	"github.com/Mutter0815/DigestMailer/pkg/rmq"
)

// Queue is one run's view of the message queue. Closing it requeues whatever
// was left unacknowledged.
type Queue interface {
	Get() (rmq.Delivery, bool, error)
	Ready() (int, error)
	Ack(tag uint64) error
	Close() error
}

// Opener hands out a fresh Queue per run.
type Opener interface {
	Open() (Queue, error)
}

// RMQOpener adapts rmq.Source to the Opener interface.
type RMQOpener struct {
	Src *rmq.Source
}

func (o RMQOpener) Open() (Queue, error) { return o.Src.Open() }

// Stats exposes the broker's unacked count, the advisory signal that another
// consumer is mid-run. Isolated behind an interface so a real distributed
// lock can replace it without touching the run logic.
type Stats interface {
	Unacked(ctx context.Context, queue string) (int, error)
}

type Dispatcher interface {
	Send(ctx context.Context, sub *mailer.Submission) ([]mailer.Result, error)
}

type MemberCounter interface {
	MemberCount(ctx context.Context) (int64, error)
}

type Config struct {
	Queue        string
	BatchSize    int
	MaxCampaigns int
	SiteURL      string
	FromEmail    string
	FromName     string
}

// Worker owns the digest run: drain the queue, aggregate users, flush batches
// to the dispatch API, and reconcile acks against the per-recipient report.
type Worker struct {
	cfg      Config
	opener   Opener
	stats    Stats
	content  digest.ContentFetcher
	links    digest.LinkGenerator
	members  MemberCounter
	dispatch Dispatcher

	mu   sync.Mutex
	last *RunSummary
}

func New(cfg Config, opener Opener, stats Stats, content digest.ContentFetcher, links digest.LinkGenerator, members MemberCounter, dispatch Dispatcher) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Worker{
		cfg:      cfg,
		opener:   opener,
		stats:    stats,
		content:  content,
		links:    links,
		members:  members,
		dispatch: dispatch,
	}
}

// RunSummary is the observable outcome of one run, served on /status.
type RunSummary struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Skipped         bool             `json:"skipped"`
	Consumed        int              `json:"consumed"`
	Aggregated      int              `json:"aggregated"`
	Acked           map[string]int   `json:"acked"`
	Dispatched      int              `json:"dispatched"`
	Deferred        int              `json:"deferred"`
	CampaignErrors  map[int64]string `json:"campaign_errors,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// LastRun returns the most recent run summary, or nil before the first run.
func (w *Worker) LastRun() *RunSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// ShouldFlush is the pure flush predicate: send when a full batch is waiting,
// or when anything is waiting and the queue has drained. The second clause is
// what gets the final undersized batch out instead of stalling forever.
func ShouldFlush(waiting, ready, batchSize int) bool {
	if waiting >= batchSize {
		return true
	}
	return waiting > 0 && ready == 0
}

// RunOnce executes one full run. It is a no-op when another consumer holds
// unacknowledged messages or the queue is empty.
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()
	summary := &RunSummary{
		StartedAt: start,
		Acked:     make(map[string]int),
	}
	defer func() {
		summary.DurationSeconds = time.Since(start).Seconds()
		metrics.RunDuration.Observe(summary.DurationSeconds)
		w.mu.Lock()
		w.last = summary
		w.mu.Unlock()
	}()

	unacked, err := w.stats.Unacked(ctx, w.cfg.Queue)
	if err != nil {
		summary.Error = err.Error()
		return fmt.Errorf("queue stats: %w", err)
	}
	if unacked > 0 {
		logx.L().Infow("run_skipped", "reason", "unacked messages present", "unacked", unacked)
		summary.Skipped = true
		return nil
	}

	q, err := w.opener.Open()
	if err != nil {
		summary.Error = err.Error()
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	cache := digest.NewCampaignCache(w.content, w.cfg.SiteURL)
	agg := digest.NewAggregator(cache)
	composer := digest.NewComposer(w.links, w.cfg.MaxCampaigns, w.cfg.FromEmail, w.cfg.FromName)
	batch := digest.NewBatchState()

	var memberCount string
	memberCountFetched := false

	defer func() {
		summary.CampaignErrors = errorReport(cache.Failures())
	}()

	for {
		if err := ctx.Err(); err != nil {
			summary.Error = err.Error()
			return err
		}

		d, ok, err := q.Get()
		if err != nil {
			summary.Error = err.Error()
			return fmt.Errorf("queue get: %w", err)
		}
		if ok {
			summary.Consumed++
			metrics.MessagesConsumed.Inc()
			w.handleMessage(ctx, agg, batch, q, d, summary)
		}

		ready, err := q.Ready()
		if err != nil {
			summary.Error = err.Error()
			return fmt.Errorf("queue ready count: %w", err)
		}

		if ShouldFlush(batch.Waiting(), ready, w.cfg.BatchSize) {
			if !memberCountFetched {
				memberCount = w.fetchMemberCount(ctx)
				memberCountFetched = true
			}
			if err := w.flush(ctx, q, composer, batch, memberCount, summary); err != nil {
				summary.Error = err.Error()
				return err
			}
			batch = digest.NewBatchState()
		}

		if !ok {
			break
		}
	}

	logx.L().Infow("run_complete",
		"consumed", summary.Consumed,
		"aggregated", summary.Aggregated,
		"dispatched", summary.Dispatched,
		"deferred", summary.Deferred,
		"campaign_errors", len(cache.Failures()),
	)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, agg *digest.Aggregator, batch *digest.BatchState, q Queue, d rmq.Delivery, summary *RunSummary) {
	var msg digest.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logx.L().Warnw("message_unmarshal_error", "error", err)
		w.ack(q, d.Tag, digest.DispositionMalformed, summary)
		return
	}

	disp := agg.Ingest(ctx, batch, &msg, d.Tag)
	if disp == digest.DispositionAggregated {
		summary.Aggregated++
		return
	}
	w.ack(q, d.Tag, disp, summary)
}

// ack settles one message exactly once against its disposition.
func (w *Worker) ack(q Queue, tag uint64, disp digest.Disposition, summary *RunSummary) {
	if err := q.Ack(tag); err != nil {
		logx.L().Errorw("ack_error", "tag", tag, "disposition", string(disp), "error", err)
		return
	}
	metrics.MessagesAcked.WithLabelValues(string(disp)).Inc()
	summary.Acked[string(disp)]++
}

func (w *Worker) fetchMemberCount(ctx context.Context) string {
	count, err := w.members.MemberCount(ctx)
	if err != nil {
		// Best effort: the block renders empty rather than failing the run.
		logx.L().Warnw("member_count_error", "error", err)
		return ""
	}
	return strconv.FormatInt(count, 10)
}

func (w *Worker) flush(ctx context.Context, q Queue, composer *digest.Composer, batch *digest.BatchState, memberCount string, summary *RunSummary) error {
	res := composer.Compose(ctx, batch, memberCount, time.Now())

	for _, a := range res.AckNow {
		w.ack(q, a.User.DeliveryTag, a.Disposition, summary)
	}
	summary.Deferred += len(res.Deferred)

	if len(res.Included) == 0 {
		logx.L().Infow("flush_skipped", "reason", "no recipients after compose")
		return nil
	}

	results, err := w.dispatch.Send(ctx, res.Submission)
	if err != nil {
		// Whole-batch failure: acknowledge nothing so the entire batch is
		// rebuilt from the queue on the next run.
		metrics.DispatchFailures.Inc()
		logx.L().Errorw("dispatch_error", "recipients", len(res.Included), "error", err)
		return fmt.Errorf("dispatch batch: %w", err)
	}
	metrics.BatchesDispatched.Inc()
	metrics.BatchRecipients.Observe(float64(len(res.Included)))

	accepted := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Accepted() {
			accepted[r.Email] = true
			metrics.RecipientsAccepted.Inc()
			continue
		}
		metrics.RecipientsRejected.Inc()
		logx.L().Warnw("recipient_rejected", "email", r.Email, "status", r.Status, "reason", r.RejectReason)
	}

	flushAccepted := 0
	for _, u := range res.Included {
		if accepted[u.Email] {
			w.ack(q, u.DeliveryTag, digest.DispositionDispatched, summary)
			summary.Dispatched++
			flushAccepted++
			continue
		}
		// Rejected or omitted from the report: leave unacked for the next run.
		summary.Deferred++
	}

	logx.L().Infow("batch_dispatched",
		"recipients", len(res.Included),
		"accepted", flushAccepted,
	)
	return nil
}

func errorReport(failures map[int64]digest.ErrorKind) map[int64]string {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[int64]string, len(failures))
	for nid, reason := range failures {
		out[nid] = string(reason)
	}
	return out
}
