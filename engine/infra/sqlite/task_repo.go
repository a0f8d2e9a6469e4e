package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/pipeline"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
)

var taskColumns = []string{
	"meeting_id", "fingerprint", "summary", "description", "team", "priority",
	"owner_id", "owner_name", "owner_email", "owner_account_id", "owner_resolution",
	"requested_owner", "requested_email", "due_date", "status", "updated_at",
}

// Owners set by hand survive a re-run of the same submission.
const taskConflict = `ON CONFLICT (meeting_id, fingerprint) DO UPDATE SET
	summary = excluded.summary,
	description = excluded.description,
	team = excluded.team,
	priority = excluded.priority,
	requested_owner = excluded.requested_owner,
	requested_email = excluded.requested_email,
	due_date = excluded.due_date,
	owner_id = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.owner_id ELSE excluded.owner_id END,
	owner_name = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.owner_name ELSE excluded.owner_name END,
	owner_email = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.owner_email ELSE excluded.owner_email END,
	owner_account_id = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.owner_account_id ELSE excluded.owner_account_id END,
	status = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.status ELSE excluded.status END,
	owner_resolution = CASE WHEN tasks.owner_resolution = 'manual' THEN tasks.owner_resolution ELSE excluded.owner_resolution END,
	updated_at = excluded.updated_at`

// TaskRepo implements pipeline.Store.
type TaskRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db, now: time.Now}
}

func (r *TaskRepo) exec(ctx context.Context, b squirrel.Sqlizer, what string) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build %s: %w", what, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	return res, nil
}

func (r *TaskRepo) SaveSubmission(ctx context.Context, sub meeting.Submission) error {
	_, err := r.exec(ctx, squirrel.Insert("submissions").
		Columns("meeting_id", "title", "platform", "transcript", "manager_email", "submitted_at").
		Values(sub.MeetingID, sub.Title, string(sub.Platform), sub.Transcript, sub.ManagerEmail, formatTime(sub.SubmittedAt)).
		Suffix(`ON CONFLICT (meeting_id) DO UPDATE SET
			title = excluded.title,
			platform = excluded.platform,
			transcript = excluded.transcript,
			manager_email = excluded.manager_email,
			submitted_at = excluded.submitted_at`),
		"save submission")
	return err
}

func (r *TaskRepo) SaveRun(ctx context.Context, res *pipeline.Result) error {
	drops, err := ToJSONText(res.Drops)
	if err != nil {
		return err
	}
	failures, err := ToJSONText(res.Failures)
	if err != nil {
		return err
	}
	digest := ""
	if res.Digest != nil {
		if digest, err = ToJSONText(res.Digest); err != nil {
			return err
		}
	}
	_, err = r.exec(ctx, squirrel.Insert("runs").
		Columns("run_id", "meeting_id", "state", "dropped", "drops", "failures", "digest", "started_at", "finished_at").
		Values(res.RunID.String(), res.MeetingID, res.State, res.Dropped, drops, failures, digest,
			formatTime(res.StartedAt), formatTime(res.FinishedAt)),
		"save run")
	return err
}

func taskValues(t task.Task, now time.Time) []any {
	var due any
	if t.DueDate != nil {
		due = t.DueDate.String()
	}
	return []any{
		t.MeetingID, t.Fingerprint, t.Summary, t.Description, t.Team, string(t.Priority),
		t.Owner.DirectoryID, t.Owner.Name, t.Owner.Email, t.Owner.AccountID, string(t.Owner.Resolution),
		t.RequestedOwner, t.RequestedEmail, due, string(t.Status), formatTime(now),
	}
}

func (r *TaskRepo) SaveTasks(ctx context.Context, tasks []task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	now := r.now()
	b := squirrel.Insert("tasks").Columns(taskColumns...)
	for _, t := range tasks {
		b = b.Values(taskValues(t, now)...)
	}
	_, err := r.exec(ctx, b.Suffix(taskConflict), "save tasks")
	return err
}

func (r *TaskRepo) UpdateTask(ctx context.Context, t task.Task) error {
	values := taskValues(t, r.now())
	set := make(map[string]any, len(taskColumns)-2)
	for i, col := range taskColumns[2:] {
		set[col] = values[i+2]
	}
	res, err := r.exec(ctx, squirrel.Update("tasks").
		SetMap(set).
		Where(squirrel.Eq{"meeting_id": t.MeetingID, "fingerprint": t.Fingerprint}),
		"update task")
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (update task): %w", err)
	}
	if n == 0 {
		return pipeline.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepo) SaveTicket(ctx context.Context, rec ticket.Record) error {
	_, err := r.exec(ctx, squirrel.Insert("tickets").
		Columns("meeting_id", "fingerprint", "ticket_key", "status", "created_at").
		Values(rec.MeetingID, rec.Fingerprint, rec.TicketKey, rec.Status, formatTime(rec.CreatedAt)).
		Suffix(`ON CONFLICT (meeting_id, fingerprint) DO UPDATE SET
			ticket_key = excluded.ticket_key,
			status = COALESCE(NULLIF(excluded.status, ''), tickets.status),
			created_at = COALESCE(NULLIF(excluded.created_at, ''), tickets.created_at)`),
		"save ticket")
	return err
}

func (r *TaskRepo) SaveNotification(ctx context.Context, rec notify.Record) error {
	_, err := r.exec(ctx, squirrel.Insert("notifications").
		Columns("meeting_id", "fingerprint", "recipient", "ticket_key", "status", "message_id", "error", "attempted_at").
		Values(rec.MeetingID, rec.Fingerprint, rec.Recipient, rec.TicketKey, string(rec.Status),
			rec.MessageID, rec.Error, formatTime(rec.AttemptedAt)),
		"save notification")
	return err
}

func (r *TaskRepo) ListOutcomes(ctx context.Context, meetingID string) ([]pipeline.Outcome, error) {
	return r.outcomes(ctx, squirrel.Eq{"meeting_id": meetingID})
}

func (r *TaskRepo) GetOutcome(ctx context.Context, meetingID, fingerprint string) (pipeline.Outcome, error) {
	list, err := r.outcomes(ctx, squirrel.Eq{"meeting_id": meetingID, "fingerprint": fingerprint})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if len(list) == 0 {
		return pipeline.Outcome{}, pipeline.ErrTaskNotFound
	}
	return list[0], nil
}

func (r *TaskRepo) outcomes(ctx context.Context, where squirrel.Eq) ([]pipeline.Outcome, error) {
	tasks, err := r.tasks(ctx, where)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	tickets, err := r.tickets(ctx, where)
	if err != nil {
		return nil, err
	}
	notes, err := r.notifications(ctx, where)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Outcome, 0, len(tasks))
	for _, t := range tasks {
		o := pipeline.Outcome{Task: t}
		if rec, ok := tickets[t.Fingerprint]; ok {
			o.Ticket = &rec
		}
		if rec, ok := notes[t.Fingerprint]; ok {
			o.Notification = &rec
		}
		o.Settle()
		out = append(out, o)
	}
	return out, nil
}

func (r *TaskRepo) tasks(ctx context.Context, where squirrel.Eq) ([]task.Task, error) {
	query, args, err := squirrel.Select(taskColumns[:len(taskColumns)-1]...).
		From("tasks").
		Where(where).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build tasks query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	defer rows.Close()
	var out []task.Task
	for rows.Next() {
		var (
			t          task.Task
			priority   string
			resolution string
			status     string
			due        sql.NullString
		)
		if err := rows.Scan(
			&t.MeetingID, &t.Fingerprint, &t.Summary, &t.Description, &t.Team, &priority,
			&t.Owner.DirectoryID, &t.Owner.Name, &t.Owner.Email, &t.Owner.AccountID, &resolution,
			&t.RequestedOwner, &t.RequestedEmail, &due, &status,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan task: %w", err)
		}
		t.Priority = task.Priority(priority)
		t.Owner.Resolution = directory.Resolution(resolution)
		t.Status = task.Status(status)
		if due.Valid && due.String != "" {
			d, err := task.ParseDate(due.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite: task %s due date: %w", t.Fingerprint, err)
			}
			t.DueDate = &d
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter tasks: %w", err)
	}
	return out, nil
}

func (r *TaskRepo) tickets(ctx context.Context, where squirrel.Eq) (map[string]ticket.Record, error) {
	query, args, err := squirrel.Select("meeting_id", "fingerprint", "ticket_key", "status", "created_at").
		From("tickets").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build tickets query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tickets: %w", err)
	}
	defer rows.Close()
	out := make(map[string]ticket.Record)
	for rows.Next() {
		var (
			rec     ticket.Record
			created string
		)
		if err := rows.Scan(&rec.MeetingID, &rec.Fingerprint, &rec.TicketKey, &rec.Status, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan ticket: %w", err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out[rec.Fingerprint] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter tickets: %w", err)
	}
	return out, nil
}

// notifications returns the latest attempt per task.
func (r *TaskRepo) notifications(ctx context.Context, where squirrel.Eq) (map[string]notify.Record, error) {
	query, args, err := squirrel.Select(
		"meeting_id", "fingerprint", "recipient", "ticket_key", "status", "message_id", "error", "attempted_at",
	).
		From("notifications").
		Where(where).
		Where(squirrel.NotEq{"fingerprint": ""}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build notifications query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notifications: %w", err)
	}
	defer rows.Close()
	out := make(map[string]notify.Record)
	for rows.Next() {
		var (
			rec       notify.Record
			status    string
			attempted string
		)
		if err := rows.Scan(
			&rec.MeetingID, &rec.Fingerprint, &rec.Recipient, &rec.TicketKey,
			&status, &rec.MessageID, &rec.Error, &attempted,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}
		rec.Status = notify.Status(status)
		if rec.AttemptedAt, err = parseTime(attempted); err != nil {
			return nil, err
		}
		out[rec.Fingerprint] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter notifications: %w", err)
	}
	return out, nil
}
