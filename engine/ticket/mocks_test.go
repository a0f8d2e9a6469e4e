package ticket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockTracker struct {
	mock.Mock
	creates atomic.Int32
}

func (m *mockTracker) CreateIssue(ctx context.Context, issue Issue) (string, error) {
	m.creates.Add(1)
	args := m.Called(ctx, issue)
	return args.String(0), args.Error(1)
}

func (m *mockTracker) SetAssignee(ctx context.Context, issueKey, accountID string) error {
	args := m.Called(ctx, issueKey, accountID)
	return args.Error(0)
}

func (m *mockTracker) IssueStatus(ctx context.Context, issueKey string) (string, error) {
	args := m.Called(ctx, issueKey)
	return args.String(0), args.Error(1)
}

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) FindAccountID(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

// flakyIndex fails CompareAndSwap so commits never land.
type flakyIndex struct {
	*MemoryIndex
	swapErr error
}

func (f *flakyIndex) CompareAndSwap(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, f.swapErr
}
