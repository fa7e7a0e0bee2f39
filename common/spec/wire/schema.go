package wire

import "github.com/santhosh-tekuri/jsonschema/v5"

const messageSchemaJSON = `{
  "type": "object",
  "properties": {
    "role":    {"type": ["string", "null"]},
    "text":    {"type": ["string", "null"]},
    "content": {"type": ["string", "null"]}
  }
}`

var suggestSchema = jsonschema.MustCompileString("quickrizz://wire/suggest.json", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "context":   {"type": ["array", "null"], "items": `+messageSchemaJSON+`},
    "messages":  {"type": ["array", "null"], "items": `+messageSchemaJSON+`},
    "n":         {"type": ["integer", "null"], "minimum": 0, "maximum": 10},
    "topicHint": {"type": ["string", "null"]},
    "spice":     {"type": ["integer", "null"]}
  }
}`)

var commitSchema = jsonschema.MustCompileString("quickrizz://wire/commit.json", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["text", "options"],
  "properties": {
    "text":  {"type": "string"},
    "stage": {"type": ["string", "null"]},
    "heat":  {"type": ["integer", "null"]},
    "ts":    {"type": ["integer", "null"], "minimum": 0},
    "options": {
      "type": "array",
      "minItems": 1,
      "items": {
        "oneOf": [
          {"type": "string"},
          {
            "type": "object",
            "properties": {
              "text":   {"type": ["string", "null"]},
              "resp":   {"type": ["string", "null"]},
              "reason": {"type": ["string", "null"]}
            }
          }
        ]
      }
    }
  }
}`)

var feedbackSchema = jsonschema.MustCompileString("quickrizz://wire/feedback.json", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["stage", "latest", "option"],
  "properties": {
    "stage":  {"type": "string"},
    "latest": {"type": "string"},
    "option": {"type": "string", "minLength": 1},
    "label":  {"type": ["string", "null"]},
    "meta":   {"type": ["object", "null"]}
  }
}`)
