package llmadapter

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

const emptyReply = `{"tasks": []}`

// Reply is one scripted model answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedModel is an llms.Model that plays back replies in order. Once the
// script is exhausted the last reply repeats; with no script it answers with
// an empty task list.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
	calls   int
}

func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

func (m *ScriptedModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prompt string
	for _, message := range messages {
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt += text.Text + "\n"
			}
		}
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	reply := Reply{Text: emptyReply}
	if len(m.replies) > 0 {
		idx := min(m.calls, len(m.replies)-1)
		reply = m.replies[idx]
	}
	m.calls++
	m.mu.Unlock()
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply.Text}},
	}, nil
}

func (m *ScriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
