package extraction

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const envelopeSchemaJSON = `{
  "type": ["object", "array"],
  "if": {"type": "object"},
  "then": {
    "anyOf": [
      {"required": ["tasks"], "properties": {"tasks": {"type": "array"}}},
      {"required": ["action_items"], "properties": {"action_items": {"type": "array"}}},
      {"required": ["actionItems"], "properties": {"actionItems": {"type": "array"}}}
    ]
  }
}`

const itemSchemaJSON = `{
  "type": "object",
  "properties": {
    "summary":      {"type": ["string", "null"]},
    "title":        {"type": ["string", "null"]},
    "description":  {"type": ["string", "null"]},
    "team":         {"type": ["string", "null"]},
    "department":   {"type": ["string", "null"]},
    "owner_name":   {"type": ["string", "null"]},
    "assigneeName": {"type": ["string", "null"]},
    "owner":        {"type": ["string", "null"]},
    "owner_email":  {"type": ["string", "null"]},
    "email":        {"type": ["string", "null"]},
    "priority":     {"type": ["string", "number", "null"]},
    "due_date":     {"type": ["string", "null"]},
    "dueDate":      {"type": ["string", "null"]},
    "deadline":     {"type": ["string", "null"]}
  }
}`

var (
	envelopeSchema = mustCompileSchema(envelopeSchemaJSON, "envelope.json")
	itemSchema     = mustCompileSchema(itemSchemaJSON, "item.json")
)

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parsing %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("adding %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling %s: %v", name, err))
	}
	return schema
}
