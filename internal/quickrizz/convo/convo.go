// Package convo defines the conversation window every QuickRizz heuristic
// reads from.
package convo

import (
	"strings"

	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// DefaultSize is the number of trailing messages kept in a window.
const DefaultSize = 10

// Role tells who sent a message.
type Role string

const (
	// Incoming is the other party, the one being replied to.
	Incoming Role = "incoming"
	// Outgoing is the user asking for suggestions.
	Outgoing Role = "outgoing"
)

// ParseRole maps the wire spellings onto a Role. "them" and an empty role
// are incoming; "you" and "me" are outgoing. Unknown values are treated as
// incoming.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outgoing", "you", "me", "user":
		return Outgoing
	default:
		return Incoming
	}
}

// label is the short speaker tag used in prompt transcripts.
func (r Role) label() string {
	if r == Outgoing {
		return "you"
	}
	return "them"
}

// Message is one line of the conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Window is the last few messages of a conversation, most recent last.
// Windows are built per request and never mutated.
type Window []Message

// NewWindow clamps every text and keeps the last size messages. A size of
// zero or less uses DefaultSize.
func NewWindow(msgs []Message, size int) Window {
	if size <= 0 {
		size = DefaultSize
	}
	if len(msgs) > size {
		msgs = msgs[len(msgs)-size:]
	}
	w := make(Window, len(msgs))
	for i, m := range msgs {
		w[i] = Message{Role: m.Role, Text: textnorm.Clamp(m.Text, textnorm.MaxChars)}
	}
	return w
}

// LatestIncoming returns the most recent non-empty incoming text, or "".
func (w Window) LatestIncoming() string {
	for i := len(w) - 1; i >= 0; i-- {
		if w[i].Role == Incoming && w[i].Text != "" {
			return w[i].Text
		}
	}
	return ""
}

// Text joins the non-empty texts of the window with single spaces.
func (w Window) Text() string {
	return w.join(func(Message) bool { return true })
}

// TextOf joins the non-empty texts sent by role.
func (w Window) TextOf(role Role) string {
	return w.join(func(m Message) bool { return m.Role == role })
}

func (w Window) join(keep func(Message) bool) string {
	parts := make([]string, 0, len(w))
	for _, m := range w {
		if m.Text != "" && keep(m) {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Transcript renders the window as "them: ..." / "you: ..." lines for a
// prompt. With expand set, slang is spelled out.
func (w Window) Transcript(expand bool) string {
	var b strings.Builder
	for i, m := range w {
		if i > 0 {
			b.WriteByte('\n')
		}
		text := m.Text
		if expand {
			text = textnorm.Expand(text)
		}
		b.WriteString(m.Role.label())
		b.WriteString(": ")
		b.WriteString(text)
	}
	return b.String()
}
