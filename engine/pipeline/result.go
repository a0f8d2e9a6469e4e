package pipeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
)

type Stage string

const (
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageRoute     Stage = "route"
	StageNotify    Stage = "notify"
	StageDigest    Stage = "digest"
	StagePersist   Stage = "persist"
)

var stageOrder = map[Stage]int{
	StageExtract:   0,
	StageNormalize: 1,
	StageRoute:     2,
	StageNotify:    3,
	StageDigest:    4,
	StagePersist:   5,
}

// StageFailure is one recorded failure. Task-level failures carry the
// task fingerprint; run-level ones leave it empty.
type StageFailure struct {
	Stage       Stage  `json:"stage"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Code        string `json:"code"`
	Message     string `json:"message"`

	order int
}

func newFailure(stage Stage, t *task.Task, order int, err error, fallback string) StageFailure {
	f := StageFailure{
		Stage:   stage,
		Code:    core.CodeOf(err, fallback),
		Message: err.Error(),
		order:   order,
	}
	if t != nil {
		f.Fingerprint = t.Fingerprint
		f.Summary = t.Summary
	}
	return f
}

type OutcomeStatus string

const (
	// OutcomeComplete means the ticket exists and the owner was notified or
	// had no address to notify.
	OutcomeComplete OutcomeStatus = "complete"
	// OutcomePartial means the ticket exists but the notification failed or
	// the ticket could not be recorded in the index.
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is everything known about one task after a run.
type Outcome struct {
	Task         task.Task      `json:"task"`
	Ticket       *ticket.Record `json:"ticket,omitempty"`
	Notification *notify.Record `json:"notification,omitempty"`
	// Inconsistent is set when the ticket was created but its index entry
	// was not committed, so a later run may create a duplicate.
	Inconsistent bool           `json:"inconsistent,omitempty"`
	Status       OutcomeStatus  `json:"status"`
}

// Settle derives Status from the ticket and notification records.
func (o *Outcome) Settle() {
	switch {
	case o.Ticket == nil || o.Ticket.TicketKey == "":
		o.Status = OutcomeFailed
	case o.Inconsistent:
		o.Status = OutcomePartial
	case o.Notification != nil && o.Notification.Status == notify.StatusFailed:
		o.Status = OutcomePartial
	default:
		o.Status = OutcomeComplete
	}
}

// Result is returned for every processed submission.
type Result struct {
	RunID      core.ID        `json:"run_id"`
	MeetingID  string         `json:"meeting_id"`
	State      string         `json:"state"`
	Tasks      []Outcome      `json:"tasks"`
	Dropped    int            `json:"dropped_proposals"`
	Drops      []task.Drop    `json:"drops,omitempty"`
	Failures   []StageFailure `json:"failures"`
	Digest     *notify.Record `json:"digest,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func (r *Result) Failed() bool {
	return r.State == StateFailed
}

// Counts returns the number of tasks per outcome status.
func (r *Result) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int, 3)
	for _, o := range r.Tasks {
		counts[o.Status]++
	}
	return counts
}

func (r *Result) sortFailures() {
	slices.SortStableFunc(r.Failures, func(a, b StageFailure) int {
		if c := cmp.Compare(stageOrder[a.Stage], stageOrder[b.Stage]); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
}
