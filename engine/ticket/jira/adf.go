package jira

import "strings"

// document renders plain text as an Atlassian Document Format doc with one
// paragraph per non-empty line.
func document(text string) map[string]any {
	var content []map[string]any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		content = append(content, map[string]any{
			"type": "paragraph",
			"content": []map[string]any{
				{"type": "text", "text": line},
			},
		})
	}
	if content == nil {
		content = []map[string]any{}
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}
