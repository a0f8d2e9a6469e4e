package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
)

// Entry is one person known to the owner directory.
type Entry struct {
	ID         string `json:"id"                   yaml:"id,omitempty"`
	Name       string `json:"name"                 yaml:"name"`
	Department string `json:"department"           yaml:"department"`
	Email      string `json:"email,omitempty"      yaml:"email,omitempty"`
	AccountID  string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Lead       bool   `json:"lead,omitempty"       yaml:"lead,omitempty"`
}

func EntryID(department, name string) string {
	return slug.Make(department + " " + name)
}

// Normalize trims fields, lower-cases the email and fills the ID.
func (e Entry) Normalize() (Entry, error) {
	e.Name = strings.Join(strings.Fields(e.Name), " ")
	e.Department = strings.Join(strings.Fields(e.Department), " ")
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.AccountID = strings.TrimSpace(e.AccountID)
	if e.Name == "" {
		return Entry{}, fmt.Errorf("directory entry: name is required")
	}
	if e.Department == "" {
		return Entry{}, fmt.Errorf("directory entry %q: department is required", e.Name)
	}
	if e.ID == "" {
		e.ID = EntryID(e.Department, e.Name)
	}
	return e, nil
}

var ErrEntryNotFound = errors.New("directory entry not found")

// Store persists directory entries. The pipeline only reads from it.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
}

// Load reads every entry from the store into a Snapshot.
func Load(ctx context.Context, store Store) (*Snapshot, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading owner directory: %w", err)
	}
	return NewSnapshot(entries), nil
}

var folder = cases.Fold()

// Fold canonicalizes a name for case-insensitive matching.
func Fold(s string) string {
	return folder.String(strings.Join(strings.Fields(s), " "))
}
