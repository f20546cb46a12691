package client

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchemaJSON is the minimum shape a run payload must have to be displayed.
const snapshotSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Graph"],
  "properties": {
    "Summary": {"type": "object"},
    "Triggers": {"type": ["array", "null"], "items": {"$ref": "#/definitions/node"}},
    "Graph": {
      "type": ["array", "null"],
      "items": {"type": ["array", "null"], "items": {"$ref": "#/definitions/node"}}
    }
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["ID"],
      "properties": {
        "ID": {"type": "string", "minLength": 1},
        "Type": {"type": "string"},
        "Enabled": {"type": "boolean"},
        "Logs": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    }
  }
}`

// submissionSchemaJSON describes the body of a data push.
const submissionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Ref", "Run", "Form"],
  "properties": {
    "Ref": {
      "type": "object",
      "required": ["ID", "Ver"],
      "properties": {
        "ID": {"type": "string", "minLength": 1},
        "Ver": {"type": "integer", "minimum": 1}
      }
    },
    "Run": {"type": "string", "pattern": "^.+-[^-]+$"},
    "Form": {
      "type": "object",
      "required": ["ID", "Values"],
      "properties": {
        "ID": {"type": "string", "minLength": 1},
        "Values": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    }
  }
}`

var (
	snapshotSchema   = compileSchema(snapshotSchemaJSON)
	submissionSchema = compileSchema(submissionSchemaJSON)
)

func compileSchema(src string) func() (*gojsonschema.Schema, error) {
	return sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	})
}

// validate checks document against the schema returned by load.
func validate(load func() (*gojsonschema.Schema, error), document gojsonschema.JSONLoader) error {
	schema, err := load()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	result, err := schema.Validate(document)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}

	return nil
}
