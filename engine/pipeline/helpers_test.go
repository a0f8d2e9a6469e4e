package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/extraction"
	llmadapter "github.com/minutemate/minutemate/engine/llm/adapter"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/notify"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu        sync.Mutex
	next      int
	issues    map[string]ticket.Issue
	assignees map[string]string
	failOn    map[string]error
	status    string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues:    make(map[string]ticket.Issue),
		assignees: make(map[string]string),
		failOn:    make(map[string]error),
	}
}

func (f *fakeTracker) CreateIssue(_ context.Context, issue ticket.Issue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[issue.Summary]; err != nil {
		return "", err
	}
	f.next++
	key := fmt.Sprintf("MM-%d", f.next)
	f.issues[key] = issue
	if issue.AssigneeAccountID != "" {
		f.assignees[key] = issue.AssigneeAccountID
	}
	return key, nil
}

func (f *fakeTracker) SetAssignee(_ context.Context, issueKey, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.issues[issueKey]; !ok {
		return errors.New("issue does not exist")
	}
	f.assignees[issueKey] = accountID
	return nil
}

func (f *fakeTracker) IssueStatus(_ context.Context, issueKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.issues[issueKey]; !ok {
		return "", errors.New("issue does not exist")
	}
	if f.status != "" {
		return f.status, nil
	}
	return "In Progress", nil
}

func (f *fakeTracker) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issues)
}

type fakeAccounts map[string]string

func (a fakeAccounts) FindAccountID(_ context.Context, email string) (string, error) {
	if id, ok := a[email]; ok {
		return id, nil
	}
	return "", errors.New("no account")
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []notify.Message
	failOn map[string]error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[msg.To]; err != nil {
		return "", err
	}
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("<%d@test>", len(s.sent)), nil
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.To)
	}
	return out
}

type memoryStore struct {
	mu       sync.Mutex
	subs     []meeting.Submission
	runs     []*Result
	order    []string
	outcomes map[string]*Outcome
	saveErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{outcomes: make(map[string]*Outcome)}
}

func storeKey(meetingID, fp string) string { return meetingID + "/" + fp }

func (s *memoryStore) SaveSubmission(_ context.Context, sub meeting.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return nil
}

func (s *memoryStore) SaveRun(_ context.Context, res *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, res)
	return nil
}

func (s *memoryStore) SaveTasks(_ context.Context, tasks []task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, t := range tasks {
		key := storeKey(t.MeetingID, t.Fingerprint)
		if _, ok := s.outcomes[key]; !ok {
			s.order = append(s.order, key)
		}
		s.outcomes[key] = &Outcome{Task: t}
	}
	return nil
}

func (s *memoryStore) UpdateTask(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outcomes[storeKey(t.MeetingID, t.Fingerprint)]
	if !ok {
		return ErrTaskNotFound
	}
	out.Task = t
	return nil
}

func (s *memoryStore) SaveTicket(_ context.Context, rec ticket.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out, ok := s.outcomes[storeKey(rec.MeetingID, rec.Fingerprint)]; ok {
		out.Ticket = &rec
	}
	return nil
}

func (s *memoryStore) SaveNotification(_ context.Context, rec notify.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out, ok := s.outcomes[storeKey(rec.MeetingID, rec.Fingerprint)]; ok && rec.Fingerprint != "" {
		out.Notification = &rec
	}
	return nil
}

func (s *memoryStore) ListOutcomes(_ context.Context, meetingID string) ([]Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []Outcome
	for _, key := range s.order {
		out := s.outcomes[key]
		if out.Task.MeetingID == meetingID {
			list = append(list, *out)
		}
	}
	return list, nil
}

func (s *memoryStore) GetOutcome(_ context.Context, meetingID, fp string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outcomes[storeKey(meetingID, fp)]
	if !ok {
		return Outcome{}, ErrTaskNotFound
	}
	return *out, nil
}

type harness struct {
	model    *llmadapter.ScriptedModel
	tracker  *fakeTracker
	sender   *recordingSender
	store    *memoryStore
	index    ticket.Index
	registry *prom.Registry
	orch     *Orchestrator
}

func testRoster() []directory.Entry {
	return []directory.Entry{
		{ID: "backend-alice-chen", Name: "Alice Chen", Department: "Backend", Email: "alice@example.com", Lead: true},
		{ID: "design-sam-lee", Name: "Sam Lee", Department: "Design", Email: "sam@example.com", AccountID: "acc-sam"},
		{ID: "ops-nomail", Name: "No Mail", Department: "Ops"},
	}
}

// commitFailingIndex loses the commit step of every ticket claim.
type commitFailingIndex struct {
	ticket.Index
}

func (c commitFailingIndex) CompareAndSwap(
	ctx context.Context,
	key, old, value string,
	ttl time.Duration,
) (bool, error) {
	if strings.Contains(key, ":ticket:") {
		return false, errors.New("redis: connection reset by peer")
	}
	return c.Index.CompareAndSwap(ctx, key, old, value, ttl)
}

func newHarness(t *testing.T, replies ...llmadapter.Reply) *harness {
	t.Helper()
	return newHarnessWithIndex(t, ticket.NewMemoryIndex(), replies...)
}

func newHarnessWithIndex(t *testing.T, index ticket.Index, replies ...llmadapter.Reply) *harness {
	t.Helper()
	h := &harness{
		model:    llmadapter.NewScriptedModel(replies...),
		tracker:  newFakeTracker(),
		sender:   &recordingSender{failOn: make(map[string]error)},
		store:    newMemoryStore(),
		index:    index,
		registry: prom.NewRegistry(),
	}
	extractor, err := extraction.New(h.model, extraction.WithTimeout(time.Second))
	require.NoError(t, err)
	router := ticket.NewRouter(h.index, h.tracker,
		ticket.WithAccountResolver(fakeAccounts{"alice@example.com": "acc-alice"}),
		ticket.WithPollInterval(time.Millisecond, 5*time.Millisecond),
	)
	dispatcher, err := notify.NewDispatcher(h.sender)
	require.NoError(t, err)
	metrics, err := NewMetrics(h.registry)
	require.NoError(t, err)
	h.orch, err = New(Deps{
		Extractor: extractor,
		Directory: directory.NewMemoryStore(testRoster()...),
		Router:    router,
		Notifier:  dispatcher,
		Index:     h.index,
		Store:     h.store,
		Metrics:   metrics,
	}, Settings{
		MaxConcurrency:     3,
		ExtractionAttempts: 3,
		BackoffBase:        time.Millisecond,
		BackoffMax:         2 * time.Millisecond,
		RouteTimeout:       time.Second,
		NotifyTimeout:      time.Second,
		ManagerDigest:      true,
	})
	require.NoError(t, err)
	return h
}

func testSubmission(t *testing.T, managerEmail string) meeting.Submission {
	t.Helper()
	sub, err := meeting.NewSubmission(meeting.Input{
		MeetingID:    "abc-defg-hij",
		Title:        "Weekly sync",
		Transcript:   "Alice: I'll fix the login bug, it's urgent.",
		ManagerEmail: managerEmail,
		SubmittedAt:  time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return sub
}
