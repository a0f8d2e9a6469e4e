package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func ownedTask() task.Task {
	due := task.NewDate(2024, time.March, 11)
	return task.Task{
		Fingerprint: "fp1",
		MeetingID:   "abc-defg-hij",
		Summary:     "Fix login bug",
		Description: "Users get a 500 on submit.",
		Priority:    task.PriorityCritical,
		DueDate:     &due,
		Owner: task.Owner{
			DirectoryID: "backend-alice-chen",
			Name:        "Alice Chen",
			Email:       "alice@example.com",
			Resolution:  directory.ResolvedByName,
		},
	}
}

func TestDispatcher_Notify(t *testing.T) {
	t.Run("Should send one message with the ticket key", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
			return m.To == "alice@example.com" &&
				m.Subject == "[MinuteMate] New task: Fix login bug (MM-1)" &&
				bytes.Contains([]byte(m.Text), []byte("Priority:  Critical")) &&
				bytes.Contains([]byte(m.Text), []byte("Due:       2024-03-11")) &&
				bytes.Contains([]byte(m.HTML), []byte("<td>MM-1</td>"))
		})).Return("id-1@example.com", nil).Once()
		d, err := NewDispatcher(sender)
		require.NoError(t, err)

		rec, err := d.Notify(t.Context(), ownedTask(), ticket.Record{TicketKey: "MM-1"})
		require.NoError(t, err)
		assert.Equal(t, StatusSent, rec.Status)
		assert.Equal(t, "id-1@example.com", rec.MessageID)
		assert.Equal(t, "MM-1", rec.TicketKey)
		sender.AssertExpectations(t)
	})

	t.Run("Should skip owners without email", func(t *testing.T) {
		sender := &mockSender{}
		d, err := NewDispatcher(sender)
		require.NoError(t, err)
		tk := ownedTask()
		tk.Owner = task.Owner{Resolution: directory.Unresolved}

		rec, err := d.Notify(t.Context(), tk, ticket.Record{TicketKey: "MM-1"})
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, rec.Status)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Should record failures without retrying", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.Anything).Return("", errors.New("550 mailbox unavailable")).Once()
		d, err := NewDispatcher(sender)
		require.NoError(t, err)

		rec, err := d.Notify(t.Context(), ownedTask(), ticket.Record{TicketKey: "MM-1"})
		assert.ErrorIs(t, err, core.ErrNotificationFailure)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Contains(t, rec.Error, "550")
		sender.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("Should escape task text in html", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
			return bytes.Contains([]byte(m.HTML), []byte("&lt;script&gt;"))
		})).Return("id", nil)
		d, err := NewDispatcher(sender)
		require.NoError(t, err)
		tk := ownedTask()
		tk.Summary = "<script>alert(1)</script>"
		_, err = d.Notify(t.Context(), tk, ticket.Record{TicketKey: "MM-1"})
		require.NoError(t, err)
	})
}

func TestDispatcher_Digest(t *testing.T) {
	sub, err := meeting.NewSubmission(meeting.Input{
		MeetingID: "abc", Title: "Planning", Transcript: "x", ManagerEmail: "boss@example.com",
	})
	require.NoError(t, err)

	t.Run("Should list unresolved tasks for the manager", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
			return m.To == "boss@example.com" &&
				m.Subject == "[MinuteMate] 1 unassigned task(s) from Planning" &&
				bytes.Contains([]byte(m.Text), []byte("- Call vendor [MM-2] (medium), mentioned: Zed"))
		})).Return("id", nil).Once()
		d, err := NewDispatcher(sender)
		require.NoError(t, err)
		tk := task.Task{Summary: "Call vendor", Priority: task.PriorityMedium, RequestedOwner: "Zed"}

		rec, err := d.Digest(t.Context(), sub, []DigestItem{{Task: tk, TicketKey: "MM-2"}})
		require.NoError(t, err)
		assert.Equal(t, StatusSent, rec.Status)
		sender.AssertExpectations(t)
	})

	t.Run("Should skip when nothing is unresolved", func(t *testing.T) {
		d, err := NewDispatcher(&mockSender{})
		require.NoError(t, err)
		rec, err := d.Digest(t.Context(), sub, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, rec.Status)
	})
}

func TestBuildMsg(t *testing.T) {
	t.Run("Should build a multipart message with a Message-ID", func(t *testing.T) {
		m, err := buildMsg("bot@example.com", Message{To: "a@example.com", Subject: "Hi", Text: "plain", HTML: "<p>html</p>"})
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = m.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Subject: Hi")
		assert.Contains(t, buf.String(), "multipart/alternative")
		assert.NotEmpty(t, messageID(m))
	})

	t.Run("Should reject bad recipients", func(t *testing.T) {
		_, err := buildMsg("bot@example.com", Message{To: "not an address"})
		assert.Error(t, err)
	})

	t.Run("Should log instead of sending", func(t *testing.T) {
		id, err := NewLogSender("").Send(t.Context(), Message{To: "a@example.com", Subject: "x", Text: "y"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})
}
