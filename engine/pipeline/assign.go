package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/minutemate/minutemate/pkg/logger"
)

var (
	ErrNoStore  = errors.New("pipeline: no task store configured")
	ErrNoTicket = errors.New("task has no ticket yet")
)

// AssignInput names the new owner of a task. Either field may be empty but
// not both.
type AssignInput struct {
	Name  string `json:"name"  validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims the input and checks it. Errors match
// core.ErrInvalidSubmission.
func (in AssignInput) Normalize() (AssignInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" && in.Email == "" {
		return in, core.NewError(
			fmt.Errorf("%w: owner name or email is required", core.ErrInvalidSubmission),
			core.ErrCodeInvalidSubmission, nil,
		)
	}
	if err := validate.Struct(in); err != nil {
		return in, core.NewError(
			fmt.Errorf("%w: %w", core.ErrInvalidSubmission, err),
			core.ErrCodeInvalidSubmission, nil,
		)
	}
	return in, nil
}

// Tasks lists the stored outcomes of a meeting. With refresh set, ticket
// statuses are re-read from the tracker and tasks whose ticket is done move
// to COMPLETED; refresh errors leave the stored status in place.
func (o *Orchestrator) Tasks(ctx context.Context, meetingID string, refresh bool) ([]Outcome, error) {
	if o.deps.Store == nil {
		return nil, ErrNoStore
	}
	outcomes, err := o.deps.Store.ListOutcomes(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks of %s: %w", meetingID, err)
	}
	if !refresh {
		return outcomes, nil
	}
	log := logger.FromContext(ctx)
	for i := range outcomes {
		if outcomes[i].Ticket == nil {
			continue
		}
		rec, err := o.deps.Router.RefreshStatus(ctx, *outcomes[i].Ticket)
		if err != nil {
			log.Warn("Ticket status refresh failed", "ticket_key", outcomes[i].Ticket.TicketKey, "error", err)
			continue
		}
		outcomes[i].Ticket = &rec
		if err := o.deps.Store.SaveTicket(ctx, rec); err != nil {
			log.Warn("Failed to store refreshed ticket status", "ticket_key", rec.TicketKey, "error", err)
		}
		if !ticket.IsDone(rec.Status) || outcomes[i].Task.Status == task.StatusCompleted {
			continue
		}
		outcomes[i].Task.Status = task.StatusCompleted
		if err := o.deps.Store.UpdateTask(ctx, outcomes[i].Task); err != nil {
			log.Warn("Failed to store completed task", "ticket_key", rec.TicketKey, "error", err)
		}
	}
	return outcomes, nil
}

// AssignTask routes a task to an owner chosen by a person, typically one
// the directory could not resolve during the run. The tracker assignee is
// updated, the stored task takes the new owner, and the owner is emailed.
// A notification failure is reported on the returned outcome only.
func (o *Orchestrator) AssignTask(ctx context.Context, meetingID, fingerprint string, in AssignInput) (Outcome, error) {
	if o.deps.Store == nil {
		return Outcome{}, ErrNoStore
	}
	in, err := in.Normalize()
	if err != nil {
		return Outcome{}, err
	}
	out, err := o.deps.Store.GetOutcome(ctx, meetingID, fingerprint)
	if err != nil {
		return Outcome{}, err
	}
	if out.Ticket == nil {
		return out, fmt.Errorf("assigning %s: %w", fingerprint, ErrNoTicket)
	}
	owner, err := o.ownerFor(ctx, in)
	if err != nil {
		return out, err
	}
	owner, err = o.deps.Router.Assign(ctx, *out.Ticket, owner)
	if err != nil {
		return out, core.NewError(err, core.ErrCodeRoutingFailure, map[string]any{"ticket_key": out.Ticket.TicketKey})
	}
	out.Task.Owner = owner
	out.Task.Status = task.StatusAssigned
	if err := o.deps.Store.UpdateTask(ctx, out.Task); err != nil {
		return out, core.NewError(err, core.ErrCodePersistenceFailure, nil)
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settings.NotifyTimeout)
	defer cancel()
	rec, _ := o.notifyOnce(sctx, core.MustNewID(), out.Task, *out.Ticket)
	out.Notification = &rec
	if err := o.deps.Store.SaveNotification(sctx, rec); err != nil {
		logger.FromContext(ctx).Warn("Failed to store notification", "error", err)
	}
	out.Settle()
	return out, nil
}

// ownerFor prefers the directory entry matching the input and falls back
// to an owner built from the input alone.
func (o *Orchestrator) ownerFor(ctx context.Context, in AssignInput) (task.Owner, error) {
	snapshot, err := directory.Load(ctx, o.deps.Directory)
	if err != nil {
		return task.Owner{}, core.NewError(err, core.ErrCodeDirectoryUnavailable, nil)
	}
	if entry, res := snapshot.Lookup(directory.Query{Name: in.Name, Email: in.Email}); res.Resolved() {
		return task.OwnerFromEntry(entry, directory.ResolvedManually), nil
	}
	return task.Owner{
		DirectoryID: directory.EntryID("manual", firstNonEmpty(in.Name, in.Email)),
		Name:        in.Name,
		Email:       in.Email,
		Resolution:  directory.ResolvedManually,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
