package ticket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/minutemate/minutemate/engine/task"
)

const StatusCreated = "created"

// Record links one task fingerprint to the issue created for it.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	MeetingID   string    `json:"meeting_id"`
	TicketKey   string    `json:"ticket_key"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	// Reused is set when the ticket already existed before this call.
	Reused bool `json:"reused"`
}

var priorityNames = map[task.Priority]string{
	task.PriorityLow:      "Low",
	task.PriorityMedium:   "Medium",
	task.PriorityHigh:     "High",
	task.PriorityCritical: "Highest",
}

// PriorityName maps a task priority onto the tracker's priority field.
func PriorityName(p task.Priority) string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return priorityNames[task.PriorityMedium]
}

var doneStatuses = map[string]struct{}{"done": {}, "closed": {}, "resolved": {}}

// IsDone reports whether a tracker status name means the work is finished.
func IsDone(status string) bool {
	_, ok := doneStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Issue is the tracker-facing shape of a task.
type Issue struct {
	Summary           string
	Description       string
	PriorityName      string
	AssigneeAccountID string
	DueDate           *task.Date
	Labels            []string
}

func IssueFromTask(t task.Task) Issue {
	var b strings.Builder
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Meeting: %s\n", t.MeetingID)
	if t.Team != "" {
		fmt.Fprintf(&b, "Team: %s\n", t.Team)
	}
	if t.Unresolved() && (t.RequestedOwner != "" || t.RequestedEmail != "") {
		fmt.Fprintf(&b, "Mentioned owner (not matched): %s\n", strings.TrimSpace(t.RequestedOwner+" "+t.RequestedEmail))
	}
	fmt.Fprintf(&b, "Fingerprint: %s", t.Fingerprint)
	return Issue{
		Summary:           t.Summary,
		Description:       b.String(),
		PriorityName:      PriorityName(t.Priority),
		AssigneeAccountID: t.Owner.AccountID,
		DueDate:           t.DueDate,
		Labels:            []string{"minutemate"},
	}
}

// Keys builds index keys. Ticket fingerprints are scoped to a meeting.
type Keys struct {
	Prefix string
}

func (k Keys) Ticket(meetingID, fingerprint string) string {
	return k.Prefix + ":ticket:" + meetingID + ":" + fingerprint
}

func (k Keys) Notification(meetingID, fingerprint, email string) string {
	return k.Prefix + ":notify:" + meetingID + ":" + fingerprint + ":" + strings.ToLower(email)
}

const pendingPrefix = "pending:"

type committedEntry struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeCommitted(key string, createdAt time.Time) (string, error) {
	b, err := json.Marshal(committedEntry{Key: key, CreatedAt: createdAt.UTC()})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeEntry returns the committed entry, or ok=false for a pending claim.
func decodeEntry(value string) (committedEntry, bool, error) {
	if strings.HasPrefix(value, pendingPrefix) {
		return committedEntry{}, false, nil
	}
	var e committedEntry
	if err := json.Unmarshal([]byte(value), &e); err != nil || e.Key == "" {
		return committedEntry{}, false, fmt.Errorf("corrupt index entry %q", value)
	}
	return e, true, nil
}
