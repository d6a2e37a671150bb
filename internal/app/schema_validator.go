package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	taskRecordsSchemaURL = "https://kanbo.local/schema/task-records.json"
	snapshotSchemaURL    = "https://kanbo.local/schema/snapshot.json"
)

const taskRecordsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "todo", "completed"],
    "properties": {
      "id": {"type": "integer", "minimum": 1},
      "todo": {"type": "string", "pattern": "\\S"},
      "completed": {"type": "boolean"},
      "status": {"enum": ["todo", "in-progress", "done"]},
      "remoteRef": {"type": "string"}
    }
  }
}`

const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "tasks"],
  "properties": {
    "version": {"type": "string"},
    "exported_at": {"type": "string"},
    "tasks": {"$ref": "https://kanbo.local/schema/task-records.json"}
  }
}`

// SchemaValidationError describes a deterministic schema-validation failure.
type SchemaValidationError struct {
	Path    string
	Message string
}

// Error renders the schema-validation failure.
func (e SchemaValidationError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s: %s", path, e.Message)
}

type compiledSchemas struct {
	records  *jsonschema.Schema
	snapshot *jsonschema.Schema
}

var loadSchemas = sync.OnceValues(func() (compiledSchemas, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(taskRecordsSchemaURL, strings.NewReader(taskRecordsSchema)); err != nil {
		return compiledSchemas{}, fmt.Errorf("add task records schema: %w", err)
	}
	if err := compiler.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchema)); err != nil {
		return compiledSchemas{}, fmt.Errorf("add snapshot schema: %w", err)
	}
	records, err := compiler.Compile(taskRecordsSchemaURL)
	if err != nil {
		return compiledSchemas{}, fmt.Errorf("compile task records schema: %w", err)
	}
	snapshot, err := compiler.Compile(snapshotSchemaURL)
	if err != nil {
		return compiledSchemas{}, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return compiledSchemas{records: records, snapshot: snapshot}, nil
})

// validateJSON decodes raw with number preservation and checks it against schema.
func validateJSON(schema *jsonschema.Schema, raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return SchemaValidationError{Path: "$", Message: "empty document"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return SchemaValidationError{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := schema.Validate(decoded); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError flattens a validation error tree into its first leaf cause.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return SchemaValidationError{Path: "$", Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return SchemaValidationError{Path: pointerToPath(ve.InstanceLocation), Message: ve.Message}
}

// pointerToPath renders a JSON pointer like /0/todo as $[0].todo.
func pointerToPath(pointer string) string {
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return "$"
	}
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(pointer, "/") {
		if isDigits(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		b.WriteString("." + part)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
