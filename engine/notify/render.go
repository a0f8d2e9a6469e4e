package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/minutemate/minutemate/engine/task"
	"github.com/minutemate/minutemate/engine/ticket"
)

const subjectPrefix = "[MinuteMate] "

const taskText = `Hi {{ .Task.Owner.Name | default "there" }},

A new task was assigned to you from meeting {{ .Task.MeetingID }}.

Task:      {{ .Task.Summary }}
Ticket:    {{ .Ticket.TicketKey }}
Priority:  {{ .Task.Priority | toString | lower | title }}
{{- with .Task.DueDate }}
Due:       {{ .String }}
{{- end }}
{{- with .Task.Description }}

{{ . | wrap 76 }}
{{- end }}

-- MinuteMate
`

const taskHTML = `<p>Hi {{ .Task.Owner.Name | default "there" }},</p>
<p>A new task was assigned to you from meeting <b>{{ .Task.MeetingID }}</b>.</p>
<table>
<tr><td>Task</td><td>{{ .Task.Summary }}</td></tr>
<tr><td>Ticket</td><td>{{ .Ticket.TicketKey }}</td></tr>
<tr><td>Priority</td><td>{{ .Task.Priority | toString | lower | title }}</td></tr>
{{- with .Task.DueDate }}
<tr><td>Due</td><td>{{ .String }}</td></tr>
{{- end }}
</table>
{{- with .Task.Description }}
<p>{{ . }}</p>
{{- end }}
<p>MinuteMate</p>
`

const digestText = `Hi,

{{ len .Items }} task(s) from "{{ .Meeting }}" could not be matched to an owner and need routing:
{{ range .Items }}
- {{ .Task.Summary }}{{ with .TicketKey }} [{{ . }}]{{ end }} ({{ .Task.Priority | toString | lower }}){{ with .Task.RequestedOwner }}, mentioned: {{ . }}{{ end }}{{ with .Task.Team }}, team: {{ . }}{{ end }}
{{- end }}

-- MinuteMate
`

const digestHTML = `<p>Hi,</p>
<p>{{ len .Items }} task(s) from <b>{{ .Meeting }}</b> could not be matched to an owner and need routing:</p>
<ul>
{{- range .Items }}
<li>{{ .Task.Summary }}{{ with .TicketKey }} [{{ . }}]{{ end }} ({{ .Task.Priority | toString | lower }}){{ with .Task.RequestedOwner }}, mentioned: {{ . }}{{ end }}{{ with .Task.Team }}, team: {{ . }}{{ end }}</li>
{{- end }}
</ul>
<p>MinuteMate</p>
`

type taskView struct {
	Task   task.Task
	Ticket ticket.Record
}

// DigestItem is one unresolved task listed in a manager digest.
type DigestItem struct {
	Task      task.Task
	TicketKey string
}

type digestView struct {
	Meeting string
	Items   []DigestItem
}

type templates struct {
	taskText   *template.Template
	taskHTML   *htmltemplate.Template
	digestText *template.Template
	digestHTML *htmltemplate.Template
}

func newTemplates() (*templates, error) {
	var t templates
	var err error
	if t.taskText, err = template.New("task.txt").Funcs(sprig.TxtFuncMap()).Parse(taskText); err != nil {
		return nil, fmt.Errorf("parsing task text template: %w", err)
	}
	if t.taskHTML, err = htmltemplate.New("task.html").Funcs(sprig.FuncMap()).Parse(taskHTML); err != nil {
		return nil, fmt.Errorf("parsing task html template: %w", err)
	}
	if t.digestText, err = template.New("digest.txt").Funcs(sprig.TxtFuncMap()).Parse(digestText); err != nil {
		return nil, fmt.Errorf("parsing digest text template: %w", err)
	}
	if t.digestHTML, err = htmltemplate.New("digest.html").Funcs(sprig.FuncMap()).Parse(digestHTML); err != nil {
		return nil, fmt.Errorf("parsing digest html template: %w", err)
	}
	return &t, nil
}

func render(text *template.Template, html *htmltemplate.Template, data any) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", html.Name(), err)
	}
	return tb.String(), hb.String(), nil
}

func (t *templates) task(tk task.Task, rec ticket.Record) (Message, error) {
	text, html, err := render(t.taskText, t.taskHTML, taskView{Task: tk, Ticket: rec})
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("%sNew task: %s", subjectPrefix, tk.Summary)
	if rec.TicketKey != "" {
		subject += fmt.Sprintf(" (%s)", rec.TicketKey)
	}
	return Message{To: tk.Owner.Email, Subject: subject, Text: text, HTML: html}, nil
}

func (t *templates) digest(to, meeting string, items []DigestItem) (Message, error) {
	text, html, err := render(t.digestText, t.digestHTML, digestView{Meeting: meeting, Items: items})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s%d unassigned task(s) from %s", subjectPrefix, len(items), meeting),
		Text:    text,
		HTML:    html,
	}, nil
}
