package pipeline

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"github.com/minutemate/minutemate/pkg/logger"
)

const (
	StateReceived    = "received"
	StateExtracting  = "extracting"
	StateNormalizing = "normalizing"
	StateRouting     = "routing"
	StateNotifying   = "notifying"
	StateDone        = "done"
	StateFailed      = "failed"
)

const (
	EventExtract   = "extract"
	EventNormalize = "normalize"
	EventRoute     = "route"
	EventNotify    = "notify"
	EventFinish    = "finish"
	EventFail      = "fail"
)

func runFSMEvents() fsm.Events {
	return fsm.Events{
		{Name: EventExtract, Src: []string{StateReceived}, Dst: StateExtracting},
		{Name: EventNormalize, Src: []string{StateExtracting}, Dst: StateNormalizing},
		{Name: EventRoute, Src: []string{StateNormalizing}, Dst: StateRouting},
		{Name: EventNotify, Src: []string{StateRouting}, Dst: StateNotifying},
		{Name: EventFinish, Src: []string{StateNotifying}, Dst: StateDone},
		// Only a total extraction failure aborts a run.
		{Name: EventFail, Src: []string{StateExtracting}, Dst: StateFailed},
	}
}

func newRunFSM(observer *transitionObserver) *fsm.FSM {
	return fsm.NewFSM(StateReceived, runFSMEvents(), fsm.Callbacks{
		"enter_state": func(ctx context.Context, e *fsm.Event) { observer.EnterState(ctx, e) },
		"leave_state": func(ctx context.Context, e *fsm.Event) { observer.LeaveState(ctx, e) },
	})
}

// transitionObserver logs transitions and times each working state.
type transitionObserver struct {
	now     func() time.Time
	metrics *Metrics
	entered time.Time
}

func newTransitionObserver(metrics *Metrics, now func() time.Time) *transitionObserver {
	return &transitionObserver{now: now, metrics: metrics}
}

func (o *transitionObserver) EnterState(ctx context.Context, e *fsm.Event) {
	o.entered = o.now()
	logger.FromContext(ctx).Debug("Pipeline transition", "event", e.Event, "from_state", e.Src, "to_state", e.Dst)
}

func (o *transitionObserver) LeaveState(_ context.Context, e *fsm.Event) {
	if e.Src == StateReceived || o.entered.IsZero() {
		return
	}
	o.metrics.observeStage(e.Src, o.now().Sub(o.entered))
}
