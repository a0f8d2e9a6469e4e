package directory

import (
	"strings"
)

type Resolution string

const (
	ResolvedByEmail Resolution = "email"
	ResolvedByName  Resolution = "name"
	ResolvedByTeam  Resolution = "team"
	Unresolved      Resolution = "unresolved"
	Ambiguous       Resolution = "ambiguous"
	// ResolvedManually marks owners set by a person after the run.
	ResolvedManually Resolution = "manual"
)

func (r Resolution) Resolved() bool {
	switch r {
	case ResolvedByEmail, ResolvedByName, ResolvedByTeam, ResolvedManually:
		return true
	}
	return false
}

type Query struct {
	Name  string
	Email string
	Team  string
}

// Snapshot is an immutable view of the directory, safe for concurrent reads.
type Snapshot struct {
	entries []Entry
	byEmail map[string]int
	byName  map[string][]int
	byTeam  map[string][]int
}

func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		byEmail: make(map[string]int),
		byName:  make(map[string][]int),
		byTeam:  make(map[string][]int),
	}
	for _, raw := range entries {
		e, err := raw.Normalize()
		if err != nil {
			continue
		}
		idx := len(s.entries)
		s.entries = append(s.entries, e)
		if e.Email != "" {
			if _, dup := s.byEmail[e.Email]; !dup {
				s.byEmail[e.Email] = idx
			}
		}
		name := Fold(e.Name)
		s.byName[name] = append(s.byName[name], idx)
		team := Fold(e.Department)
		s.byTeam[team] = append(s.byTeam[team], idx)
	}
	return s
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Lookup resolves a query. An email match wins. A name match is taken when it
// is unique, or when exactly one candidate belongs to the stated team. A
// team-only query resolves to the team's single lead, or to its only member.
// A name with no match falls back to the team rule.
func (s *Snapshot) Lookup(q Query) (Entry, Resolution) {
	if s == nil {
		return Entry{}, Unresolved
	}
	if email := strings.ToLower(strings.TrimSpace(q.Email)); email != "" {
		if idx, ok := s.byEmail[email]; ok {
			return s.entries[idx], ResolvedByEmail
		}
	}
	team := Fold(q.Team)
	if name := Fold(q.Name); name != "" {
		candidates := s.byName[name]
		switch {
		case len(candidates) == 1:
			return s.entries[candidates[0]], ResolvedByName
		case len(candidates) > 1:
			if team == "" {
				return Entry{}, Ambiguous
			}
			scoped := s.inTeam(candidates, team)
			if len(scoped) == 1 {
				return s.entries[scoped[0]], ResolvedByName
			}
			return Entry{}, Ambiguous
		}
	}
	if team == "" {
		return Entry{}, Unresolved
	}
	return s.teamOwner(team)
}

func (s *Snapshot) inTeam(candidates []int, team string) []int {
	var scoped []int
	for _, idx := range candidates {
		if Fold(s.entries[idx].Department) == team {
			scoped = append(scoped, idx)
		}
	}
	return scoped
}

func (s *Snapshot) teamOwner(team string) (Entry, Resolution) {
	members := s.byTeam[team]
	if len(members) == 0 {
		return Entry{}, Unresolved
	}
	var leads []int
	for _, idx := range members {
		if s.entries[idx].Lead {
			leads = append(leads, idx)
		}
	}
	switch {
	case len(leads) == 1:
		return s.entries[leads[0]], ResolvedByTeam
	case len(leads) == 0 && len(members) == 1:
		return s.entries[members[0]], ResolvedByTeam
	}
	return Entry{}, Ambiguous
}

// ByEmail returns the entry registered under email.
func (s *Snapshot) ByEmail(email string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	idx, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Entry{}, false
	}
	return s.entries[idx], true
}
