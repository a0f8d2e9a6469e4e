package task

import (
	"strings"

	"github.com/minutemate/minutemate/engine/directory"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

var prioritySynonyms = map[string]Priority{
	"low":          PriorityLow,
	"minor":        PriorityLow,
	"trivial":      PriorityLow,
	"nice to have": PriorityLow,
	"p3":           PriorityLow,
	"medium":       PriorityMedium,
	"normal":       PriorityMedium,
	"moderate":     PriorityMedium,
	"p2":           PriorityMedium,
	"high":         PriorityHigh,
	"urgent":       PriorityHigh,
	"asap":         PriorityHigh,
	"important":    PriorityHigh,
	"major":        PriorityHigh,
	"p1":           PriorityHigh,
	"critical":     PriorityCritical,
	"blocker":      PriorityCritical,
	"highest":      PriorityCritical,
	"showstopper":  PriorityCritical,
	"p0":           PriorityCritical,
}

// ParsePriority maps free text onto the four levels. Anything it does not
// recognize, including the empty string, is MEDIUM.
func ParsePriority(raw string) Priority {
	key := directory.Fold(strings.Trim(raw, " \t\n.!?\"'"))
	key = strings.ReplaceAll(key, "-", " ")
	key = strings.Join(strings.Fields(key), " ")
	if p, ok := prioritySynonyms[key]; ok {
		return p
	}
	return PriorityMedium
}

func (p Priority) Severity() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

func (p Priority) IsValid() bool {
	return p.Severity() > 0
}

func MaxPriority(a, b Priority) Priority {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}
