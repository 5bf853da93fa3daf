package ourapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request bodies are normalized (decoded, trimmed, re-encoded) before being
// checked against these schemas, so the minLength constraints apply to the
// trimmed values, matching the sink's field contract.
const (
	agentCreateSchemaJSON = `{
		"type": "object",
		"required": ["name", "email"],
		"properties": {
			"name": {"type": "string", "minLength": 2},
			"email": {"type": "string", "minLength": 2}
		}
	}`
	chatCreateSchemaJSON = `{
		"type": "object",
		"required": ["external_id", "started_at"],
		"properties": {
			"external_id": {"type": "string", "minLength": 1},
			"started_at": {"type": "string"},
			"ended_at": {"type": ["string", "null"]},
			"agent_id": {"type": ["string", "null"]}
		}
	}`
	chatUpdateSchemaJSON = `{
		"type": "object",
		"properties": {
			"started_at": {"type": ["string", "null"]},
			"ended_at": {"type": ["string", "null"]},
			"agent_id": {"type": ["string", "null"]}
		}
	}`
	messageCreateSchemaJSON = `{
		"type": "object",
		"required": ["sent_at", "text"],
		"properties": {
			"sent_at": {"type": "string"},
			"text": {"type": "string", "minLength": 2},
			"agent_id": {"type": ["string", "null"]}
		}
	}`
)

type requestSchemas struct {
	agentCreate   *jsonschema.Schema
	chatCreate    *jsonschema.Schema
	chatUpdate    *jsonschema.Schema
	messageCreate *jsonschema.Schema
}

func compileRequestSchemas() *requestSchemas {
	return &requestSchemas{
		agentCreate:   mustCompileSchema("agent_create.json", agentCreateSchemaJSON),
		chatCreate:    mustCompileSchema("chat_create.json", chatCreateSchemaJSON),
		chatUpdate:    mustCompileSchema("chat_update.json", chatUpdateSchemaJSON),
		messageCreate: mustCompileSchema("message_create.json", messageCreateSchemaJSON),
	}
}

func mustCompileSchema(name, source string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		panic(fmt.Sprintf("ourapi: invalid schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("ourapi: add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("ourapi: compile schema %s: %v", name, err))
	}
	return schema
}

// validateAgainst re-encodes the normalized payload and validates it.
func validateAgainst(schema *jsonschema.Schema, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
