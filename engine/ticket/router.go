package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Tracker is the external issue tracker.
type Tracker interface {
	CreateIssue(ctx context.Context, issue Issue) (string, error)
	SetAssignee(ctx context.Context, issueKey, accountID string) error
	IssueStatus(ctx context.Context, issueKey string) (string, error)
}

// AccountResolver finds a tracker account id for an email address.
type AccountResolver interface {
	FindAccountID(ctx context.Context, email string) (string, error)
}

var (
	ErrClaimPending = errors.New("ticket claim still pending")
	ErrNoAccount    = errors.New("owner has no tracker account")
)

type RouterOption func(*Router)

func WithKeys(keys Keys) RouterOption {
	return func(r *Router) { r.keys = keys }
}

// WithClaimTTL bounds how long an unfinished claim blocks other routers.
func WithClaimTTL(d time.Duration) RouterOption {
	return func(r *Router) { r.claimTTL = d }
}

// WithClaimWait bounds how long a caller waits on another router's claim.
func WithClaimWait(d time.Duration) RouterOption {
	return func(r *Router) { r.claimWait = d }
}

func WithRetention(d time.Duration) RouterOption {
	return func(r *Router) { r.retention = d }
}

func WithPollInterval(base, limit time.Duration) RouterOption {
	return func(r *Router) {
		r.pollBase = base
		r.pollMax = limit
	}
}

func WithAccountResolver(resolver AccountResolver) RouterOption {
	return func(r *Router) { r.accounts = resolver }
}

func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// Router creates at most one tracker issue per task fingerprint.
type Router struct {
	index     Index
	tracker   Tracker
	accounts  AccountResolver
	keys      Keys
	claimTTL  time.Duration
	claimWait time.Duration
	retention time.Duration
	pollBase  time.Duration
	pollMax   time.Duration
	now       func() time.Time
	flights   singleflight.Group
}

func NewRouter(index Index, tracker Tracker, opts ...RouterOption) *Router {
	r := &Router{
		index:     index,
		tracker:   tracker,
		keys:      Keys{Prefix: "minutemate:fp"},
		claimTTL:  2 * time.Minute,
		claimWait: 30 * time.Second,
		retention: 30 * 24 * time.Hour,
		pollBase:  50 * time.Millisecond,
		pollMax:   time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Keys() Keys {
	return r.keys
}

// EnsureTicket returns the ticket for t, creating it when no ticket exists.
// Concurrent calls for the same fingerprint, in this process or elsewhere,
// result in a single creation. If the issue was created but its index entry
// could not be committed, the record is returned together with an error
// matching core.ErrRouterInconsistency.
//
// The shared call runs detached from every caller, bounded by the claim wait
// plus the claim TTL. A caller whose ctx ends stops waiting and gets
// ctx.Err(); the call keeps going for the others.
func (r *Router) EnsureTicket(ctx context.Context, t task.Task) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	key := r.keys.Ticket(t.MeetingID, t.Fingerprint)
	ch := r.flights.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.claimWait+r.claimTTL)
		defer cancel()
		return r.ensure(fctx, t, key)
	})
	select {
	case res := <-ch:
		rec, _ := res.Val.(Record)
		return rec, res.Err
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

func (r *Router) ensure(ctx context.Context, t task.Task, key string) (Record, error) {
	log := logger.FromContext(ctx).With("component", "ticket_router", "meeting_id", t.MeetingID, "fingerprint", t.Fingerprint)
	rec := Record{Fingerprint: t.Fingerprint, MeetingID: t.MeetingID}
	var claim string
	b := retry.NewExponential(r.pollBase)
	b = retry.WithCappedDuration(r.pollMax, b)
	b = retry.WithMaxDuration(r.claimWait, b)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		value, ok, err := r.index.Lookup(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			entry, committed, err := decodeEntry(value)
			if err != nil {
				return err
			}
			if !committed {
				return retry.RetryableError(ErrClaimPending)
			}
			rec.TicketKey = entry.Key
			rec.CreatedAt = entry.CreatedAt
			rec.Reused = true
			return nil
		}
		token := pendingPrefix + core.MustNewID().String()
		inserted, err := r.index.ConditionalInsert(ctx, key, token, r.claimTTL)
		if err != nil {
			return err
		}
		if !inserted {
			return retry.RetryableError(ErrClaimPending)
		}
		claim = token
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrClaimPending) {
			return Record{}, fmt.Errorf("%w: %s after %s", ErrClaimPending, key, r.claimWait)
		}
		return Record{}, fmt.Errorf("checking ticket index: %w", err)
	}
	if claim == "" {
		log.Debug("Ticket already exists", "ticket_key", rec.TicketKey)
		return rec, nil
	}
	return r.create(ctx, t, key, claim, rec)
}

func (r *Router) create(ctx context.Context, t task.Task, key, claim string, rec Record) (Record, error) {
	log := logger.FromContext(ctx).With("component", "ticket_router", "meeting_id", t.MeetingID, "fingerprint", t.Fingerprint)
	issue := IssueFromTask(t)
	if issue.AssigneeAccountID == "" && t.Owner.Resolved() && t.Owner.Email != "" && r.accounts != nil {
		if id, err := r.accounts.FindAccountID(ctx, t.Owner.Email); err == nil {
			issue.AssigneeAccountID = id
		} else {
			log.Warn("Creating ticket unassigned", "owner", t.Owner.Email, "error", err)
		}
	}
	issueKey, err := r.tracker.CreateIssue(ctx, issue)
	if err != nil {
		if _, relErr := r.index.CompareAndDelete(context.WithoutCancel(ctx), key, claim); relErr != nil {
			log.Warn("Failed to release ticket claim", "error", relErr)
		}
		return Record{}, fmt.Errorf("creating issue: %w", err)
	}
	rec.TicketKey = issueKey
	rec.CreatedAt = r.now().UTC()
	rec.Status = StatusCreated
	log = log.With("ticket_key", issueKey)
	value, err := encodeCommitted(issueKey, rec.CreatedAt)
	if err != nil {
		return rec, r.inconsistency(log, rec, err)
	}
	swapped, err := r.index.CompareAndSwap(context.WithoutCancel(ctx), key, claim, value, r.retention)
	if err != nil {
		return rec, r.inconsistency(log, rec, err)
	}
	if !swapped {
		return rec, r.inconsistency(log, rec, errors.New("claim expired before commit"))
	}
	log.Info("Ticket created", "priority", issue.PriorityName, "assigned", issue.AssigneeAccountID != "")
	return rec, nil
}

func (r *Router) inconsistency(log logger.Logger, rec Record, cause error) error {
	log.Error("Ticket created but index not updated; a retry may duplicate it", "error", cause)
	return core.NewError(
		fmt.Errorf("%w: %w", core.ErrRouterInconsistency, cause),
		core.ErrCodeRouterInconsistency,
		map[string]any{"ticket_key": rec.TicketKey, "fingerprint": rec.Fingerprint},
	)
}

// Lookup returns the committed record for a fingerprint, if any.
func (r *Router) Lookup(ctx context.Context, meetingID, fingerprint string) (Record, bool, error) {
	value, ok, err := r.index.Lookup(ctx, r.keys.Ticket(meetingID, fingerprint))
	if err != nil || !ok {
		return Record{}, false, err
	}
	entry, committed, err := decodeEntry(value)
	if err != nil || !committed {
		return Record{}, false, err
	}
	return Record{
		Fingerprint: fingerprint,
		MeetingID:   meetingID,
		TicketKey:   entry.Key,
		CreatedAt:   entry.CreatedAt,
		Reused:      true,
	}, true, nil
}

// RefreshStatus re-reads the issue status from the tracker.
func (r *Router) RefreshStatus(ctx context.Context, rec Record) (Record, error) {
	status, err := r.tracker.IssueStatus(ctx, rec.TicketKey)
	if err != nil {
		return rec, fmt.Errorf("refreshing status of %s: %w", rec.TicketKey, err)
	}
	rec.Status = status
	return rec, nil
}

// Assign points the ticket at owner, looking up the account id by email when
// the directory does not carry one. It returns the owner with the account id
// filled in.
func (r *Router) Assign(ctx context.Context, rec Record, owner task.Owner) (task.Owner, error) {
	if owner.AccountID == "" && owner.Email != "" && r.accounts != nil {
		id, err := r.accounts.FindAccountID(ctx, owner.Email)
		if err != nil {
			return owner, fmt.Errorf("resolving account for %s: %w", owner.Email, err)
		}
		owner.AccountID = id
	}
	if owner.AccountID == "" {
		return owner, fmt.Errorf("assigning %s: %w", rec.TicketKey, ErrNoAccount)
	}
	if err := r.tracker.SetAssignee(ctx, rec.TicketKey, owner.AccountID); err != nil {
		return owner, fmt.Errorf("assigning %s: %w", rec.TicketKey, err)
	}
	logger.FromContext(ctx).Info("Ticket assigned", "ticket_key", rec.TicketKey, "owner", owner.Email)
	return owner, nil
}
