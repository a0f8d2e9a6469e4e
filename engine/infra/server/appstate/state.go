package appstate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/pipeline"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
)

// Pipeline is the part of the orchestrator the HTTP handlers drive.
type Pipeline interface {
	Process(ctx context.Context, sub meeting.Submission) *pipeline.Result
	Tasks(ctx context.Context, meetingID string, refresh bool) ([]pipeline.Outcome, error)
	AssignTask(ctx context.Context, meetingID, fingerprint string, in pipeline.AssignInput) (pipeline.Outcome, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type State struct {
	Pipeline Pipeline
	Version  string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewState(p Pipeline, version string) (*State, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	return &State{
		Pipeline: p,
		Version:  version,
		checks:   make(map[string]HealthCheck),
	}, nil
}

// AddHealthCheck registers a named dependency probe used by the health route.
func (s *State) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// HealthChecks returns the registered probes ordered by name.
func (s *State) HealthChecks() []NamedCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NamedCheck, 0, len(s.checks))
	for name, check := range s.checks {
		out = append(out, NamedCheck{Name: name, Check: check})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type NamedCheck struct {
	Name  string
	Check HealthCheck
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
