package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/minutemate/minutemate/engine/core"
	llmadapter "github.com/minutemate/minutemate/engine/llm/adapter"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/tmc/langchaingo/llms"
)

type FailureKind string

const (
	FailureEmptyTranscript FailureKind = "empty_transcript"
	FailureOracle          FailureKind = "oracle_error"
	FailureTimeout         FailureKind = "timeout"
	FailureMalformed       FailureKind = "malformed_reply"
)

// Failure is returned for every unsuccessful extraction. It matches
// core.ErrExtractionFailure under errors.Is.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failure (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{core.ErrExtractionFailure, f.Err}
}

// Retryable reports whether another oracle call could succeed.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailureTimeout, FailureMalformed:
		return true
	case FailureOracle:
		return llmadapter.IsRetryable(f.Err)
	}
	return false
}

// IsRetryable reports whether err is an extraction failure worth retrying.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable()
}

type Extractor struct {
	model       llms.Model
	prompt      *template.Template
	jsonMode    bool
	temperature float64
	timeout     time.Duration
}

type Option func(*Extractor)

func WithJSONMode(enabled bool) Option {
	return func(e *Extractor) { e.jsonMode = enabled }
}

func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

func New(model llms.Model, opts ...Option) (*Extractor, error) {
	if model == nil {
		return nil, errors.New("extraction: model is required")
	}
	tpl, err := newPromptTemplate()
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		model:       model,
		prompt:      tpl,
		temperature: 0.2,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract performs exactly one oracle call. It never returns a partial list:
// on any failure the proposals are nil and the error is a *Failure.
func (e *Extractor) Extract(ctx context.Context, sub meeting.Submission) ([]task.Proposal, error) {
	log := logger.FromContext(ctx).With("component", "extraction", "meeting_id", sub.MeetingID)
	if strings.TrimSpace(sub.Transcript) == "" {
		return nil, &Failure{Kind: FailureEmptyTranscript, Err: errors.New("transcript is empty")}
	}
	prompt, err := renderPrompt(e.prompt, sub)
	if err != nil {
		return nil, &Failure{Kind: FailureOracle, Err: err}
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	opts := []llms.CallOption{llms.WithTemperature(e.temperature)}
	if e.jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}
	start := time.Now()
	resp, err := e.model.GenerateContent(callCtx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		kind := FailureOracle
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		log.Warn("Oracle call failed", "error", err, "kind", kind, "duration", time.Since(start))
		return nil, &Failure{Kind: kind, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Failure{Kind: FailureMalformed, Err: errors.New("oracle returned no choices")}
	}
	proposals, err := ParseReply(resp.Choices[0].Content)
	if err != nil {
		log.Warn("Oracle reply rejected", "error", err, "reply_bytes", len(resp.Choices[0].Content))
		return nil, &Failure{Kind: FailureMalformed, Err: err}
	}
	log.Debug("Oracle reply parsed", "proposals", len(proposals), "duration", time.Since(start))
	return proposals, nil
}
