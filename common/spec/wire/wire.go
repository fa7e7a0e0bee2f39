// Package wire defines the JSON request and response bodies of the
// QuickRizz HTTP API.
//
// Incoming bodies are decoded once into a generic value, checked against an
// embedded JSON schema and only then decoded into the typed request. Every
// rejection wraps ErrInvalid so handlers can map it to a 400.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalid marks a request body that cannot be served.
var ErrInvalid = errors.New("invalid request")

// DefaultCount is the number of suggestions returned when n is omitted.
const DefaultCount = 3

// MaxCount bounds n in a suggestion request.
const MaxCount = 10

// Message is one conversation turn as sent by clients. Role accepts
// "incoming"/"outgoing" and the legacy "them"/"you"; Content is an alias of
// Text.
type Message struct {
	Role    string `json:"role"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

// Body returns Text, or Content when Text is empty.
func (m Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Content
}

// SuggestRequest asks for reply suggestions.
type SuggestRequest struct {
	Context   []Message `json:"context"`
	Messages  []Message `json:"messages,omitempty"`
	N         int       `json:"n"`
	TopicHint string    `json:"topicHint,omitempty"`
	// Spice overrides the inferred heat when it is 0 to 3.
	Spice *int `json:"spice,omitempty"`
}

// History returns Context, falling back to Messages when Context is empty.
func (r *SuggestRequest) History() []Message {
	if len(r.Context) > 0 {
		return r.Context
	}
	return r.Messages
}

// Plan is the goal and tip for a stage.
type Plan struct {
	Goal string `json:"goal"`
	Tip  string `json:"tip"`
}

// SuggestResponse is the reply to a SuggestRequest.
type SuggestResponse struct {
	Stage   string   `json:"stage"`
	Plan    Plan     `json:"plan"`
	Options []string `json:"options"`
	Spice   int      `json:"spice"`
	Topic   string   `json:"topic,omitempty"`
	Debug   any      `json:"debug,omitempty"`
}

// CommitOption is one reply being recorded. It decodes from either a bare
// string or an object {text|resp, rating?, reason?}.
type CommitOption struct {
	Text string `json:"text"`
	// Rating is "Y", "N" or empty.
	Rating string `json:"rating,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *CommitOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = CommitOption{Text: s}
		return nil
	}
	var obj struct {
		Text   string `json:"text"`
		Resp   string `json:"resp"`
		Rating any    `json:"rating"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*o = CommitOption{Text: obj.Resp, Reason: obj.Reason}
	if o.Text == "" {
		o.Text = obj.Text
	}
	if r, ok := obj.Rating.(string); ok {
		switch r = strings.ToUpper(strings.TrimSpace(r)); r {
		case "Y", "N":
			o.Rating = r
		}
	}
	return nil
}

// CommitRequest records replies for an incoming message.
type CommitRequest struct {
	Text  string `json:"text"`
	Stage string `json:"stage"`
	Heat  int    `json:"heat"`
	// TS is Unix milliseconds; zero means now.
	TS      int64          `json:"ts,omitempty"`
	Options []CommitOption `json:"options"`
}

// CommitResponse is the reply to a CommitRequest.
type CommitResponse struct {
	OK         bool   `json:"ok"`
	Key        string `json:"key,omitempty"`
	Added      int    `json:"added"`
	TotalItems int    `json:"totalItems"`
	Error      string `json:"error,omitempty"`
}

// FeedbackRequest logs a reaction to a suggestion.
type FeedbackRequest struct {
	Stage  string         `json:"stage"`
	Latest string         `json:"latest"`
	Option string         `json:"option"`
	Label  string         `json:"label,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Result is the generic {ok, error} reply.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ParseSuggest decodes and validates a suggestion request. A zero n becomes
// DefaultCount.
func ParseSuggest(data []byte) (*SuggestRequest, error) {
	var req SuggestRequest
	if err := decode(data, suggestSchema, &req); err != nil {
		return nil, err
	}
	if req.N == 0 {
		req.N = DefaultCount
	}
	return &req, nil
}

// ParseCommit decodes and validates a commit request. Stage is lower-cased
// and defaults to "banter"; heat is clamped to 0..4.
func ParseCommit(data []byte) (*CommitRequest, error) {
	var req CommitRequest
	if err := decode(data, commitSchema, &req); err != nil {
		return nil, err
	}
	req.Stage = strings.ToLower(strings.TrimSpace(req.Stage))
	if req.Stage == "" {
		req.Stage = "banter"
	}
	req.Heat = min(max(req.Heat, 0), 4)
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: missing text", ErrInvalid)
	}
	return &req, nil
}

// ParseFeedback decodes and validates a feedback request.
func ParseFeedback(data []byte) (*FeedbackRequest, error) {
	var req FeedbackRequest
	if err := decode(data, feedbackSchema, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decode(data []byte, schema *jsonschema.Schema, dst any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: bad json: %v", ErrInvalid, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// describe reduces a schema error to its most specific cause.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
