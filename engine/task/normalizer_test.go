package task

import (
	"testing"
	"time"

	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubmission(t *testing.T) meeting.Submission {
	t.Helper()
	sub, err := meeting.NewSubmission(meeting.Input{
		MeetingID:   "abc-defg-hij",
		Transcript:  "notes",
		SubmittedAt: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return sub
}

func testDirectory() *directory.Snapshot {
	return directory.NewSnapshot([]directory.Entry{
		{Name: "Alice Chen", Department: "Backend", Email: "alice@example.com", AccountID: "acc-alice", Lead: true},
		{Name: "Sam Lee", Department: "Design", Email: "sam.design@example.com"},
		{Name: "Sam Lee", Department: "Marketing", Email: "sam.mkt@example.com"},
	})
}

func TestNormalizer_Normalize(t *testing.T) {
	sub := testSubmission(t)
	n := NewNormalizer(testDirectory())

	t.Run("Should collapse duplicates keeping the highest priority", func(t *testing.T) {
		res := n.Normalize([]Proposal{
			{Summary: "Fix login bug", OwnerName: "Alice Chen", Team: "Backend", Priority: "urgent"},
			{Summary: "  fix LOGIN   bug ", OwnerName: "alice chen", Team: "backend", Priority: "blocker",
				Description: "Users get 500s", DueDate: "tomorrow"},
		}, sub)
		require.Len(t, res.Tasks, 1)
		got := res.Tasks[0]
		assert.Equal(t, PriorityCritical, got.Priority)
		assert.Equal(t, "Fix login bug", got.Summary)
		assert.Equal(t, "Users get 500s", got.Description)
		require.NotNil(t, got.DueDate)
		assert.Equal(t, "2024-03-07", got.DueDate.String())
		assert.Equal(t, "backend-alice-chen", got.Owner.DirectoryID)
		assert.Equal(t, StatusAssigned, got.Status)
		assert.Equal(t, 0, res.Dropped)
	})

	t.Run("Should drop empty and malformed proposals and count them", func(t *testing.T) {
		res := n.Normalize([]Proposal{
			{Summary: "   "},
			{Malformed: true, Reason: "item is not an object"},
			{Summary: "Write release notes"},
		}, sub)
		require.Len(t, res.Tasks, 1)
		assert.Equal(t, 2, res.Dropped)
		require.Len(t, res.Drops, 2)
		assert.Equal(t, DropEmptySummary, res.Drops[0].Reason)
		assert.Equal(t, DropMalformed, res.Drops[1].Reason)
		assert.Equal(t, 1, res.Drops[1].Index)
	})

	t.Run("Should keep tasks whose owner cannot be resolved", func(t *testing.T) {
		res := n.Normalize([]Proposal{
			{Summary: "Update brand guide", OwnerName: "Sam Lee"},
			{Summary: "Call vendor", OwnerName: "Nobody Known", Priority: "whenever"},
		}, sub)
		require.Len(t, res.Tasks, 2)
		assert.True(t, res.Tasks[0].Unresolved())
		assert.Equal(t, directory.Ambiguous, res.Tasks[0].Owner.Resolution)
		assert.Equal(t, "Sam Lee", res.Tasks[0].RequestedOwner)
		assert.Equal(t, StatusNew, res.Tasks[0].Status)
		assert.Equal(t, PriorityMedium, res.Tasks[1].Priority)
	})

	t.Run("Should resolve name ties by the stated team", func(t *testing.T) {
		res := n.Normalize([]Proposal{{Summary: "Update brand guide", OwnerName: "Sam Lee", Team: "Marketing"}}, sub)
		require.Len(t, res.Tasks, 1)
		assert.Equal(t, "sam.mkt@example.com", res.Tasks[0].Owner.Email)
	})

	t.Run("Should parse relative due dates and null out unknown ones", func(t *testing.T) {
		res := n.Normalize([]Proposal{
			{Summary: "Prepare demo", DueDate: "next Monday"},
			{Summary: "Clean backlog", DueDate: "sometime"},
		}, sub)
		require.Len(t, res.Tasks, 2)
		require.NotNil(t, res.Tasks[0].DueDate)
		assert.Equal(t, "2024-03-11", res.Tasks[0].DueDate.String())
		assert.Nil(t, res.Tasks[1].DueDate)
	})

	t.Run("Should keep first-seen order and separate different owners", func(t *testing.T) {
		res := n.Normalize([]Proposal{
			{Summary: "B task"},
			{Summary: "A task", OwnerEmail: "alice@example.com"},
			{Summary: "A task"},
			{Summary: "b task", Priority: "low"},
		}, sub)
		require.Len(t, res.Tasks, 3)
		assert.Equal(t, "B task", res.Tasks[0].Summary)
		assert.Equal(t, PriorityMedium, res.Tasks[0].Priority)
		assert.Equal(t, "A task", res.Tasks[1].Summary)
		assert.NotEqual(t, res.Tasks[1].Fingerprint, res.Tasks[2].Fingerprint)
	})

	t.Run("Should be idempotent across runs", func(t *testing.T) {
		in := []Proposal{
			{Summary: "Fix login bug", OwnerName: "Alice Chen", Priority: "urgent"},
			{Summary: "fix login bug", OwnerName: "Alice Chen", Priority: "low"},
			{Summary: "Ship docs", Team: "Docs"},
			{Summary: ""},
		}
		first := n.Normalize(in, sub)
		second := n.Normalize(in, sub)
		assert.Equal(t, first, second)
		for _, tk := range first.Tasks {
			assert.True(t, tk.Priority.IsValid())
			assert.Equal(t, sub.MeetingID, tk.MeetingID)
		}
	})

	t.Run("Should work without a directory", func(t *testing.T) {
		res := NewNormalizer(nil).Normalize([]Proposal{{Summary: "x", OwnerName: "Alice Chen"}}, sub)
		require.Len(t, res.Tasks, 1)
		assert.True(t, res.Tasks[0].Unresolved())
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("Should be stable under case and spacing changes", func(t *testing.T) {
		a := Fingerprint("Fix  Login bug", "backend-alice", "Backend")
		b := Fingerprint("fix login BUG", "backend-alice", "backend ")
		assert.Equal(t, a, b)
		assert.Len(t, a, 32)
	})

	t.Run("Should distinguish absent from present fields", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("x", "", "team"), Fingerprint("x", "team", ""))
		assert.NotEqual(t, Fingerprint("x", "", ""), Fingerprint("x", "a", ""))
	})
}
