package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	t.Run("Should parse the tasks envelope", func(t *testing.T) {
		reply := `{"tasks": [
			{"summary": "Fix login bug", "description": "500 on submit", "team": "Backend",
			 "owner_name": "Alice Chen", "owner_email": null, "priority": "urgent", "due_date": "2024-03-11"}
		]}`
		got, err := ParseReply(reply)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Fix login bug", got[0].Summary)
		assert.Equal(t, "Backend", got[0].Team)
		assert.Equal(t, "Alice Chen", got[0].OwnerName)
		assert.Empty(t, got[0].OwnerEmail)
		assert.Equal(t, "urgent", got[0].Priority)
		assert.Equal(t, "2024-03-11", got[0].DueDate)
		assert.False(t, got[0].Malformed)
	})

	t.Run("Should accept a fenced bare array with legacy field names", func(t *testing.T) {
		reply := "```json\n[{\"title\": \"Ship docs\", \"assigneeName\": \"Bob\", \"department\": \"Docs\", \"dueDate\": \"tomorrow\"}]\n```"
		got, err := ParseReply(reply)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Ship docs", got[0].Summary)
		assert.Equal(t, "Bob", got[0].OwnerName)
		assert.Equal(t, "Docs", got[0].Team)
		assert.Equal(t, "tomorrow", got[0].DueDate)
	})

	t.Run("Should accept the deadline alias and string nulls", func(t *testing.T) {
		got, err := ParseReply(`{"action_items": [{"summary": "x", "deadline": "EOD", "owner": "null"}]}`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "EOD", got[0].DueDate)
		assert.Empty(t, got[0].OwnerName)
	})

	t.Run("Should flag malformed items without failing the reply", func(t *testing.T) {
		got, err := ParseReply(`{"tasks": ["just text", {"summary": 42}, {"summary": "ok"}]}`)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Malformed)
		assert.True(t, got[1].Malformed)
		assert.False(t, got[2].Malformed)
	})

	t.Run("Should return an empty list for an empty envelope", func(t *testing.T) {
		got, err := ParseReply(`{"tasks": []}`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Should fail closed on replies that are not a task list", func(t *testing.T) {
		for _, reply := range []string{
			"",
			"Sure! Here are the tasks: fix the bug.",
			`{"tasks": [{"summary": "x"}`,
			`{"items": []}`,
			`{"tasks": "none"}`,
			`"tasks"`,
			`42`,
		} {
			got, err := ParseReply(reply)
			assert.ErrorIs(t, err, errMalformedReply, reply)
			assert.Nil(t, got, reply)
		}
	})
}
