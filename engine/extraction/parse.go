package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/minutemate/minutemate/engine/task"
	"github.com/tidwall/gjson"
)

var errMalformedReply = errors.New("reply is not a task list")

var (
	envelopeKeys = []string{"tasks", "action_items", "actionItems"}
	summaryKeys  = []string{"summary", "title"}
	teamKeys     = []string{"team", "department"}
	ownerKeys    = []string{"owner_name", "assigneeName", "owner"}
	emailKeys    = []string{"owner_email", "email"}
	dueKeys      = []string{"due_date", "dueDate", "deadline"}
)

// ParseReply decodes an oracle reply into proposals. A reply that is not a
// task list as a whole is an error; individual bad items come back flagged
// as malformed.
func ParseReply(reply string) ([]task.Proposal, error) {
	body := stripFences(reply)
	if body == "" || !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", errMalformedReply)
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedReply, err)
	}
	if err := envelopeSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedReply, err)
	}
	items := envelope(gjson.Parse(body))
	proposals := make([]task.Proposal, 0, len(items))
	for i, item := range items {
		proposals = append(proposals, parseItem(i, item))
	}
	return proposals, nil
}

func envelope(root gjson.Result) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	for _, key := range envelopeKeys {
		if v := root.Get(key); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func parseItem(i int, item gjson.Result) task.Proposal {
	if !item.IsObject() {
		return task.Proposal{Malformed: true, Reason: fmt.Sprintf("item %d is %s, not an object", i, item.Type)}
	}
	var doc any
	if err := json.Unmarshal([]byte(item.Raw), &doc); err != nil {
		return task.Proposal{Malformed: true, Reason: err.Error()}
	}
	if err := itemSchema.Validate(doc); err != nil {
		return task.Proposal{Malformed: true, Reason: fmt.Sprintf("item %d: %v", i, err)}
	}
	return task.Proposal{
		Summary:     first(item, summaryKeys),
		Description: item.Get("description").String(),
		Team:        first(item, teamKeys),
		OwnerName:   first(item, ownerKeys),
		OwnerEmail:  first(item, emailKeys),
		Priority:    item.Get("priority").String(),
		DueDate:     first(item, dueKeys),
	}
}

func first(item gjson.Result, keys []string) string {
	for _, key := range keys {
		v := item.Get(key)
		if v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" && !strings.EqualFold(s, "null") {
				return s
			}
		}
	}
	return ""
}

func stripFences(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
