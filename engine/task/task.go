package task

import (
	"github.com/minutemate/minutemate/engine/directory"
)

// Proposal is one untrusted candidate produced by the extraction oracle.
// Empty strings stand for fields the oracle left null.
type Proposal struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Team        string `json:"team,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	OwnerEmail  string `json:"owner_email,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`

	// Malformed marks items the oracle emitted in an unusable shape.
	Malformed bool   `json:"-"`
	Reason    string `json:"-"`
}

type Status string

const (
	StatusNew       Status = "NEW"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
)

type Owner struct {
	DirectoryID string               `json:"directory_id,omitempty"`
	Name        string               `json:"name,omitempty"`
	Email       string               `json:"email,omitempty"`
	AccountID   string               `json:"account_id,omitempty"`
	Resolution  directory.Resolution `json:"resolution"`
}

func OwnerFromEntry(e directory.Entry, res directory.Resolution) Owner {
	return Owner{
		DirectoryID: e.ID,
		Name:        e.Name,
		Email:       e.Email,
		AccountID:   e.AccountID,
		Resolution:  res,
	}
}

func (o Owner) Resolved() bool {
	return o.DirectoryID != "" && o.Resolution.Resolved()
}

// Task is a validated, de-duplicated action item from one submission.
type Task struct {
	Fingerprint    string   `json:"fingerprint"`
	MeetingID      string   `json:"meeting_id"`
	Summary        string   `json:"summary"`
	Description    string   `json:"description"`
	Team           string   `json:"team,omitempty"`
	Priority       Priority `json:"priority"`
	Owner          Owner    `json:"owner"`
	RequestedOwner string   `json:"requested_owner,omitempty"`
	RequestedEmail string   `json:"requested_email,omitempty"`
	DueDate        *Date    `json:"due_date,omitempty"`
	Status         Status   `json:"status"`
}

func (t Task) Unresolved() bool {
	return !t.Owner.Resolved()
}
