package candidates

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoJSON is returned by ParseOptions when the generator output holds no
// JSON object.
var ErrNoJSON = errors.New("candidates: no JSON object in generator output")

const optionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["options"],
  "properties": {
    "options": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var optionsValidator = jsonschema.MustCompileString("quickrizz://candidates/options.json", optionsSchema)

// ParseOptions extracts the candidate list from raw generator output. The
// outermost {...} span is decoded and checked against the options schema;
// text around it is ignored.
func ParseOptions(raw string) ([]string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	body := raw[start : end+1]

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("candidates: decode options: %w", err)
	}
	if err := optionsValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("candidates: validate options: %w", err)
	}

	var out struct {
		Options []string `json:"options"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("candidates: decode options: %w", err)
	}
	return out.Options, nil
}
