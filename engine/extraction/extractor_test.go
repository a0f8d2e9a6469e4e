package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	llmadapter "github.com/minutemate/minutemate/engine/llm/adapter"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func testSubmission(t *testing.T) meeting.Submission {
	t.Helper()
	sub, err := meeting.NewSubmission(meeting.Input{
		MeetingID:   "abc-defg-hij",
		Title:       "Sprint planning",
		Transcript:  "Alice: I'll fix the login bug by next Monday, it's urgent.",
		SubmittedAt: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return sub
}

type slowModel struct{}

func (slowModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m slowModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func TestExtractor_Extract(t *testing.T) {
	sub := testSubmission(t)

	t.Run("Should render the prompt and return proposals", func(t *testing.T) {
		model := llmadapter.NewScriptedModel(llmadapter.Reply{
			Text: `{"tasks":[{"summary":"Fix login bug","owner_name":"Alice","priority":"urgent","due_date":"2024-03-11"}]}`,
		})
		ex, err := New(model, WithJSONMode(true))
		require.NoError(t, err)
		got, err := ex.Extract(t.Context(), sub)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Alice", got[0].OwnerName)

		prompts := model.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], `"Sprint planning"`)
		assert.Contains(t, prompts[0], "2024-03-06 (Wednesday)")
		assert.Contains(t, prompts[0], "fix the login bug")
		assert.Contains(t, prompts[0], `{"tasks": [ ... ]}`)
	})

	t.Run("Should fail closed on an unparseable reply", func(t *testing.T) {
		ex, err := New(llmadapter.NewScriptedModel(llmadapter.Reply{Text: "I could not find any tasks."}))
		require.NoError(t, err)
		got, err := ex.Extract(t.Context(), sub)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, core.ErrExtractionFailure)
		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, FailureMalformed, failure.Kind)
		assert.True(t, IsRetryable(err))
	})

	t.Run("Should classify oracle errors", func(t *testing.T) {
		ex, err := New(llmadapter.NewScriptedModel(llmadapter.Reply{Err: errors.New("status code: 401 invalid api key")}))
		require.NoError(t, err)
		_, err = ex.Extract(t.Context(), sub)
		assert.ErrorIs(t, err, core.ErrExtractionFailure)
		assert.False(t, IsRetryable(err))
	})

	t.Run("Should time out slow oracle calls", func(t *testing.T) {
		ex, err := New(slowModel{}, WithTimeout(20*time.Millisecond))
		require.NoError(t, err)
		_, err = ex.Extract(t.Context(), sub)
		var failure *Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, FailureTimeout, failure.Kind)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, IsRetryable(err))
	})

	t.Run("Should reject an empty transcript without calling the oracle", func(t *testing.T) {
		model := llmadapter.NewScriptedModel()
		ex, err := New(model)
		require.NoError(t, err)
		_, err = ex.Extract(t.Context(), meeting.Submission{MeetingID: "m"})
		assert.ErrorIs(t, err, core.ErrExtractionFailure)
		assert.False(t, IsRetryable(err))
		assert.Equal(t, 0, model.Calls())
	})
}
