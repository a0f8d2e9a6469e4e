package pipeline

import (
	"context"
	"errors"

	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
)

var ErrTaskNotFound = errors.New("task not found")

// Store persists runs and their tasks.
type Store interface {
	SaveSubmission(ctx context.Context, sub meeting.Submission) error
	SaveRun(ctx context.Context, res *Result) error
	SaveTasks(ctx context.Context, tasks []task.Task) error
	UpdateTask(ctx context.Context, t task.Task) error
	SaveTicket(ctx context.Context, rec ticket.Record) error
	SaveNotification(ctx context.Context, rec notify.Record) error
	// ListOutcomes returns the stored tasks of a meeting in creation order.
	ListOutcomes(ctx context.Context, meetingID string) ([]Outcome, error)
	// GetOutcome returns ErrTaskNotFound when the task is unknown.
	GetOutcome(ctx context.Context, meetingID, fingerprint string) (Outcome, error)
}
