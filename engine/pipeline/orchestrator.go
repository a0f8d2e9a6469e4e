package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type Extractor interface {
	Extract(ctx context.Context, sub meeting.Submission) ([]task.Proposal, error)
}

type Router interface {
	EnsureTicket(ctx context.Context, t task.Task) (ticket.Record, error)
	RefreshStatus(ctx context.Context, rec ticket.Record) (ticket.Record, error)
	Assign(ctx context.Context, rec ticket.Record, owner task.Owner) (task.Owner, error)
	Keys() ticket.Keys
}

type Notifier interface {
	Notify(ctx context.Context, t task.Task, rec ticket.Record) (notify.Record, error)
	Digest(ctx context.Context, sub meeting.Submission, items []notify.DigestItem) (notify.Record, error)
}

// Deps are the collaborators of an Orchestrator. Store and Metrics are
// optional.
type Deps struct {
	Extractor Extractor
	Directory directory.Store
	Router    Router
	Notifier  Notifier
	// Index holds notification markers. It is usually the router's index.
	Index   ticket.Index
	Store   Store
	Metrics *Metrics
}

type Settings struct {
	MaxConcurrency     int
	ExtractionAttempts int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	RouteTimeout       time.Duration
	NotifyTimeout      time.Duration
	ManagerDigest      bool
	// MarkerRetention is how long a sent notification stays recorded.
	MarkerRetention time.Duration
}

func SettingsFrom(cfg *config.Config) Settings {
	p := cfg.Pipeline
	return Settings{
		MaxConcurrency:     p.MaxConcurrency,
		ExtractionAttempts: p.ExtractionAttempts,
		BackoffBase:        p.BackoffBase,
		BackoffMax:         p.BackoffMax,
		RouteTimeout:       p.RouteTimeout,
		NotifyTimeout:      p.NotifyTimeout,
		ManagerDigest:      p.ManagerDigest,
		MarkerRetention:    cfg.Index.Retention,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxConcurrency < 1 {
		s.MaxConcurrency = 1
	}
	if s.ExtractionAttempts < 1 {
		s.ExtractionAttempts = 1
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = 500 * time.Millisecond
	}
	if s.BackoffMax < s.BackoffBase {
		s.BackoffMax = s.BackoffBase
	}
	if s.RouteTimeout <= 0 {
		s.RouteTimeout = 30 * time.Second
	}
	if s.NotifyTimeout <= 0 {
		s.NotifyTimeout = 20 * time.Second
	}
	if s.MarkerRetention <= 0 {
		s.MarkerRetention = 30 * 24 * time.Hour
	}
	return s
}

const (
	markerSending = "sending:"
	markerSent    = "sent:"
)

// Orchestrator runs submissions through extraction, normalization, ticket
// routing and notification.
type Orchestrator struct {
	deps     Deps
	settings Settings
	now      func() time.Time
}

func New(deps Deps, settings Settings) (*Orchestrator, error) {
	switch {
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Directory == nil:
		return nil, errors.New("pipeline: directory store is required")
	case deps.Router == nil:
		return nil, errors.New("pipeline: router is required")
	case deps.Notifier == nil:
		return nil, errors.New("pipeline: notifier is required")
	case deps.Index == nil:
		return nil, errors.New("pipeline: index is required")
	}
	return &Orchestrator{deps: deps, settings: settings.withDefaults(), now: time.Now}, nil
}

type run struct {
	result  *Result
	machine *fsm.FSM
	mu      sync.Mutex
}

func (r *run) fire(ctx context.Context, event string) {
	if err := r.machine.Event(ctx, event); err != nil {
		logger.FromContext(ctx).Error("Invalid pipeline transition", "event", event, "state", r.machine.Current(), "error", err)
	}
	r.result.State = r.machine.Current()
}

func (r *run) fail(f StageFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Failures = append(r.result.Failures, f)
}

// Process handles one submission. It always returns a result; a run that
// could not extract anything ends in StateFailed with the extraction
// failure recorded. Ticket creation and mail delivery already started are
// allowed to finish when ctx is cancelled.
func (o *Orchestrator) Process(ctx context.Context, sub meeting.Submission) *Result {
	r := &run{
		result: &Result{
			RunID:     core.MustNewID(),
			MeetingID: sub.MeetingID,
			Tasks:     []Outcome{},
			Failures:  []StageFailure{},
			StartedAt: o.now().UTC(),
		},
	}
	r.machine = newRunFSM(newTransitionObserver(o.deps.Metrics, o.now))
	r.result.State = r.machine.Current()
	log := logger.FromContext(ctx).With("component", "pipeline", "meeting_id", sub.MeetingID, "run_id", r.result.RunID)
	ctx = logger.ContextWithLogger(ctx, log)
	log.Info("Processing submission", "platform", sub.Platform, "transcript_bytes", len(sub.Transcript))

	o.persist(ctx, r, func(ctx context.Context, s Store) error { return s.SaveSubmission(ctx, sub) })

	r.fire(ctx, EventExtract)
	proposals, err := o.extract(ctx, sub)
	if err != nil {
		r.fail(newFailure(StageExtract, nil, 0, err, core.ErrCodeExtractionFailure))
		r.fire(ctx, EventFail)
		log.Error("Extraction failed, submission aborted", "error", err)
		return o.finish(ctx, r)
	}

	r.fire(ctx, EventNormalize)
	o.normalize(ctx, r, sub, proposals)

	r.fire(ctx, EventRoute)
	o.route(ctx, r)

	r.fire(ctx, EventNotify)
	o.notify(ctx, r)
	o.digest(ctx, r, sub)

	r.fire(ctx, EventFinish)
	return o.finish(ctx, r)
}

func (o *Orchestrator) extract(ctx context.Context, sub meeting.Submission) ([]task.Proposal, error) {
	log := logger.FromContext(ctx)
	b := retry.NewExponential(o.settings.BackoffBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(o.settings.BackoffMax, b)
	b = retry.WithMaxRetries(uint64(o.settings.ExtractionAttempts-1), b)
	attempt := 0
	return retry.DoValue(ctx, b, func(ctx context.Context) ([]task.Proposal, error) {
		attempt++
		proposals, err := o.deps.Extractor.Extract(ctx, sub)
		if err == nil {
			log.Debug("Extraction succeeded", "attempt", attempt, "proposals", len(proposals))
			return proposals, nil
		}
		if retryable(err) && ctx.Err() == nil {
			log.Warn("Extraction attempt failed", "attempt", attempt, "error", err)
			return nil, retry.RetryableError(err)
		}
		return nil, err
	})
}

func retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func (o *Orchestrator) normalize(ctx context.Context, r *run, sub meeting.Submission, proposals []task.Proposal) {
	log := logger.FromContext(ctx)
	snapshot, err := directory.Load(ctx, o.deps.Directory)
	if err != nil {
		// Tasks still get tickets, just without owners.
		log.Warn("Owner directory unavailable, routing all tasks unassigned", "error", err)
		r.fail(newFailure(StageNormalize, nil, 0, err, core.ErrCodeDirectoryUnavailable))
		snapshot = directory.NewSnapshot(nil)
	}
	norm := task.NewNormalizer(snapshot).Normalize(proposals, sub)
	r.result.Dropped = norm.Dropped
	r.result.Drops = norm.Drops
	for _, t := range norm.Tasks {
		r.result.Tasks = append(r.result.Tasks, Outcome{Task: t})
	}
	log.Info("Proposals normalized",
		"proposals", len(proposals), "tasks", len(norm.Tasks), "dropped", norm.Dropped,
		"directory_size", snapshot.Len())
	o.persist(ctx, r, func(ctx context.Context, s Store) error { return s.SaveTasks(ctx, norm.Tasks) })
}

// fanOut runs fn for each selected task with bounded concurrency. Tasks not
// yet started when ctx is cancelled are recorded as failures of stage.
func (o *Orchestrator) fanOut(ctx context.Context, r *run, stage Stage, selected func(*Outcome) bool, fn func(int, *Outcome)) {
	var g errgroup.Group
	g.SetLimit(o.settings.MaxConcurrency)
	for i := range r.result.Tasks {
		out := &r.result.Tasks[i]
		if !selected(out) {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.fail(newFailure(stage, &out.Task, i,
				core.NewError(fmt.Errorf("not started: %w", err), core.ErrCodeCancelled, nil), core.ErrCodeCancelled))
			continue
		}
		g.Go(func() error {
			fn(i, out)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) route(ctx context.Context, r *run) {
	all := func(*Outcome) bool { return true }
	o.fanOut(ctx, r, StageRoute, all, func(i int, out *Outcome) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settings.RouteTimeout)
		defer cancel()
		rec, err := o.deps.Router.EnsureTicket(sctx, out.Task)
		if rec.TicketKey != "" {
			out.Ticket = &rec
			o.persist(sctx, r, func(ctx context.Context, s Store) error { return s.SaveTicket(ctx, rec) })
		}
		if err != nil {
			out.Inconsistent = errors.Is(err, core.ErrRouterInconsistency)
			r.fail(newFailure(StageRoute, &out.Task, i, err, core.ErrCodeRoutingFailure))
		}
	})
}

func (o *Orchestrator) notify(ctx context.Context, r *run) {
	routed := func(out *Outcome) bool { return out.Ticket != nil }
	o.fanOut(ctx, r, StageNotify, routed, func(i int, out *Outcome) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settings.NotifyTimeout)
		defer cancel()
		rec, err := o.notifyOnce(sctx, r.result.RunID, out.Task, *out.Ticket)
		out.Notification = &rec
		o.persist(sctx, r, func(ctx context.Context, s Store) error { return s.SaveNotification(ctx, rec) })
		if err != nil {
			r.fail(newFailure(StageNotify, &out.Task, i, err, core.ErrCodeNotificationFailure))
		}
	})
}

// notifyOnce sends the owner notification unless an earlier run already
// did. A marker is claimed in the index before sending and released when
// the send fails so a retried submission can try again.
func (o *Orchestrator) notifyOnce(ctx context.Context, runID core.ID, t task.Task, rec ticket.Record) (notify.Record, error) {
	email := strings.TrimSpace(t.Owner.Email)
	if email == "" {
		return o.deps.Notifier.Notify(ctx, t, rec)
	}
	log := logger.FromContext(ctx).With("fingerprint", t.Fingerprint)
	key := o.deps.Router.Keys().Notification(t.MeetingID, t.Fingerprint, email)
	claim := markerSending + runID.String()
	inserted, err := o.deps.Index.ConditionalInsert(ctx, key, claim, 2*o.settings.NotifyTimeout)
	if err != nil {
		return notify.Record{
			Fingerprint: t.Fingerprint,
			MeetingID:   t.MeetingID,
			Recipient:   email,
			TicketKey:   rec.TicketKey,
			Status:      notify.StatusFailed,
			Error:       err.Error(),
			AttemptedAt: o.now().UTC(),
		}, core.NewError(err, core.ErrCodeIndexUnavailable, map[string]any{"key": key})
	}
	if !inserted {
		skipped := notify.Record{
			Fingerprint: t.Fingerprint,
			MeetingID:   t.MeetingID,
			Recipient:   email,
			TicketKey:   rec.TicketKey,
			Status:      notify.StatusSkipped,
			AttemptedAt: o.now().UTC(),
		}
		if value, ok, err := o.deps.Index.Lookup(ctx, key); err == nil && ok {
			if id, sent := strings.CutPrefix(value, markerSent); sent {
				skipped.MessageID = id
			} else {
				skipped.Error = "notification in progress elsewhere"
			}
		}
		log.Debug("Owner already notified", "recipient", email)
		return skipped, nil
	}
	out, sendErr := o.deps.Notifier.Notify(ctx, t, rec)
	if sendErr != nil {
		if _, err := o.deps.Index.CompareAndDelete(ctx, key, claim); err != nil {
			log.Warn("Failed to release notification marker", "error", err)
		}
		return out, sendErr
	}
	if _, err := o.deps.Index.CompareAndSwap(ctx, key, claim, markerSent+out.MessageID, o.settings.MarkerRetention); err != nil {
		log.Warn("Failed to record notification marker", "error", err)
	}
	return out, nil
}

func (o *Orchestrator) digest(ctx context.Context, r *run, sub meeting.Submission) {
	if !o.settings.ManagerDigest || sub.ManagerEmail == "" {
		return
	}
	var items []notify.DigestItem
	for _, out := range r.result.Tasks {
		if !out.Task.Unresolved() {
			continue
		}
		item := notify.DigestItem{Task: out.Task}
		if out.Ticket != nil {
			item.TicketKey = out.Ticket.TicketKey
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settings.NotifyTimeout)
	defer cancel()
	rec, err := o.deps.Notifier.Digest(sctx, sub, items)
	r.result.Digest = &rec
	o.persist(sctx, r, func(ctx context.Context, s Store) error { return s.SaveNotification(ctx, rec) })
	if err != nil {
		r.fail(newFailure(StageDigest, nil, 0, err, core.ErrCodeNotificationFailure))
	}
}

func (o *Orchestrator) finish(ctx context.Context, r *run) *Result {
	res := r.result
	for i := range res.Tasks {
		res.Tasks[i].Settle()
	}
	res.FinishedAt = o.now().UTC()
	res.sortFailures()
	o.persist(context.WithoutCancel(ctx), r, func(ctx context.Context, s Store) error { return s.SaveRun(ctx, res) })
	o.deps.Metrics.observeResult(res)
	counts := res.Counts()
	logger.FromContext(ctx).Info("Submission processed",
		"state", res.State,
		"complete", counts[OutcomeComplete],
		"partial", counts[OutcomePartial],
		"failed", counts[OutcomeFailed],
		"dropped", res.Dropped,
		"failures", len(res.Failures),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res
}

func (o *Orchestrator) persist(ctx context.Context, r *run, fn func(context.Context, Store) error) {
	if o.deps.Store == nil {
		return
	}
	if err := fn(ctx, o.deps.Store); err != nil {
		logger.FromContext(ctx).Error("Failed to persist pipeline state", "error", err)
		r.fail(newFailure(StagePersist, nil, 0, err, core.ErrCodePersistenceFailure))
	}
}
