package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/minutemate/minutemate/pkg/logger"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message and returns its Message-ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Record is the outcome of one dispatch attempt.
type Record struct {
	Fingerprint string    `json:"fingerprint,omitempty"`
	MeetingID   string    `json:"meeting_id"`
	Recipient   string    `json:"recipient,omitempty"`
	TicketKey   string    `json:"ticket_key,omitempty"`
	Status      Status    `json:"status"`
	MessageID   string    `json:"message_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Dispatcher sends task notifications. Each call makes exactly one attempt.
type Dispatcher struct {
	sender Sender
	tpl    *templates
	now    func() time.Time
}

func NewDispatcher(sender Sender) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("notify: sender is required")
	}
	tpl, err := newTemplates()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{sender: sender, tpl: tpl, now: time.Now}, nil
}

// Notify tells the task owner about the ticket. Owners without an email get
// a skipped record and no error.
func (d *Dispatcher) Notify(ctx context.Context, t task.Task, rec ticket.Record) (Record, error) {
	out := Record{
		Fingerprint: t.Fingerprint,
		MeetingID:   t.MeetingID,
		Recipient:   strings.TrimSpace(t.Owner.Email),
		TicketKey:   rec.TicketKey,
		AttemptedAt: d.now().UTC(),
	}
	if out.Recipient == "" {
		out.Status = StatusSkipped
		return out, nil
	}
	msg, err := d.tpl.task(t, rec)
	if err != nil {
		return d.failed(ctx, out, err)
	}
	return d.send(ctx, out, msg)
}

// Digest sends the manager one message listing tasks nobody owns.
func (d *Dispatcher) Digest(ctx context.Context, sub meeting.Submission, items []DigestItem) (Record, error) {
	out := Record{
		MeetingID:   sub.MeetingID,
		Recipient:   sub.ManagerEmail,
		AttemptedAt: d.now().UTC(),
	}
	if out.Recipient == "" || len(items) == 0 {
		out.Status = StatusSkipped
		return out, nil
	}
	msg, err := d.tpl.digest(sub.ManagerEmail, sub.DisplayName(), items)
	if err != nil {
		return d.failed(ctx, out, err)
	}
	return d.send(ctx, out, msg)
}

func (d *Dispatcher) send(ctx context.Context, out Record, msg Message) (Record, error) {
	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		return d.failed(ctx, out, err)
	}
	out.Status = StatusSent
	out.MessageID = id
	logger.FromContext(ctx).Debug("Notification sent",
		"component", "notify", "recipient", out.Recipient, "ticket_key", out.TicketKey, "message_id", id)
	return out, nil
}

func (d *Dispatcher) failed(ctx context.Context, out Record, err error) (Record, error) {
	out.Status = StatusFailed
	out.Error = err.Error()
	logger.FromContext(ctx).Warn("Notification failed",
		"component", "notify", "recipient", out.Recipient, "ticket_key", out.TicketKey, "error", err)
	return out, core.NewError(
		fmt.Errorf("%w: %w", core.ErrNotificationFailure, err),
		core.ErrCodeNotificationFailure,
		map[string]any{"recipient": out.Recipient},
	)
}
