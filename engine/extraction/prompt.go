package extraction

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/minutemate/minutemate/engine/meeting"
)

const systemPrompt = `You turn meeting transcripts into discrete action items.
For every action item emit an object with these fields:
  "summary": a short imperative title,
  "description": one or two sentences of detail,
  "team": the responsible team or department if stated, else null,
  "owner_name": the responsible person if stated, else null,
  "owner_email": the responsible person's email if stated, else null,
  "priority": one word such as low, medium, high, urgent or blocker, else null,
  "due_date": a calendar date YYYY-MM-DD when a concrete or relative deadline
              ("next Monday", "EOD") is mentioned, else null.
Use null for anything unknown. Do not invent people.
Respond with JSON only, exactly {"tasks": [ ... ]}, with no prose and no code fences.`

const userPromptTemplate = `Meeting: {{ .DisplayName | quote }} on {{ .Platform | toString | default "google-meet" }}
Meeting date: {{ dateInZone "2006-01-02 (Monday)" .SubmittedAt "UTC" }}
Resolve relative deadlines against the meeting date.

Transcript:
"""
{{ .Transcript | trim }}
"""`

func newPromptTemplate() (*template.Template, error) {
	tpl, err := template.New("extraction").Funcs(sprig.TxtFuncMap()).Parse(userPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing extraction prompt: %w", err)
	}
	return tpl, nil
}

func renderPrompt(tpl *template.Template, sub meeting.Submission) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, sub); err != nil {
		return "", fmt.Errorf("rendering extraction prompt: %w", err)
	}
	return buf.String(), nil
}
