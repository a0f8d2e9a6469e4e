package task

import (
	"strings"

	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/meeting"
)

type DropReason string

const (
	DropMalformed    DropReason = "malformed"
	DropEmptySummary DropReason = "empty_summary"
)

type Drop struct {
	Index  int        `json:"index"`
	Reason DropReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

type Result struct {
	Tasks   []Task `json:"tasks"`
	Dropped int    `json:"dropped"`
	Drops   []Drop `json:"drops,omitempty"`
}

// Normalizer turns raw proposals into tasks. It holds no mutable state and is
// safe for concurrent use.
type Normalizer struct {
	dir *directory.Snapshot
}

func NewNormalizer(dir *directory.Snapshot) *Normalizer {
	return &Normalizer{dir: dir}
}

func (n *Normalizer) Normalize(proposals []Proposal, sub meeting.Submission) Result {
	res := Result{Tasks: make([]Task, 0, len(proposals))}
	index := make(map[string]int, len(proposals))
	for i, p := range proposals {
		if p.Malformed {
			res.drop(i, DropMalformed, p.Reason)
			continue
		}
		summary := collapse(p.Summary)
		if summary == "" {
			res.drop(i, DropEmptySummary, "")
			continue
		}
		t := n.build(p, summary, sub)
		if at, ok := index[t.Fingerprint]; ok {
			res.Tasks[at] = merge(res.Tasks[at], t)
			continue
		}
		index[t.Fingerprint] = len(res.Tasks)
		res.Tasks = append(res.Tasks, t)
	}
	return res
}

func (r *Result) drop(i int, reason DropReason, detail string) {
	r.Dropped++
	r.Drops = append(r.Drops, Drop{Index: i, Reason: reason, Detail: detail})
}

func (n *Normalizer) build(p Proposal, summary string, sub meeting.Submission) Task {
	team := collapse(p.Team)
	entry, resolution := n.dir.Lookup(directory.Query{
		Name:  p.OwnerName,
		Email: p.OwnerEmail,
		Team:  team,
	})
	owner := Owner{Resolution: resolution}
	if resolution.Resolved() {
		owner = OwnerFromEntry(entry, resolution)
	}
	t := Task{
		MeetingID:      sub.MeetingID,
		Summary:        summary,
		Description:    strings.TrimSpace(p.Description),
		Team:           team,
		Priority:       ParsePriority(p.Priority),
		Owner:          owner,
		RequestedOwner: collapse(p.OwnerName),
		RequestedEmail: strings.ToLower(strings.TrimSpace(p.OwnerEmail)),
		Status:         StatusNew,
	}
	if due, ok := ParseDue(p.DueDate, sub.SubmittedAt); ok {
		t.DueDate = &due
	}
	if owner.Resolved() {
		t.Status = StatusAssigned
	}
	t.Fingerprint = Fingerprint(summary, owner.DirectoryID, team)
	return t
}

// merge folds a later duplicate into the first-seen task: the highest priority
// wins and empty fields are filled from the duplicate.
func merge(first, dup Task) Task {
	first.Priority = MaxPriority(first.Priority, dup.Priority)
	if first.Description == "" {
		first.Description = dup.Description
	}
	if first.DueDate == nil {
		first.DueDate = dup.DueDate
	}
	if first.RequestedOwner == "" {
		first.RequestedOwner = dup.RequestedOwner
	}
	if first.RequestedEmail == "" {
		first.RequestedEmail = dup.RequestedEmail
	}
	if first.Owner.AccountID == "" && dup.Owner.DirectoryID == first.Owner.DirectoryID {
		first.Owner.AccountID = dup.Owner.AccountID
	}
	return first
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
