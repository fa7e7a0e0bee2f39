// Package textnorm holds the text utilities shared by the heuristics and the
// recall index: clamping, slang expansion, normalization, tokenization and
// word shingles.
package textnorm

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxChars is the default clamp length for a single message.
const MaxChars = 350

//go:embed slang.yaml
var defaultSlangYAML []byte

var (
	spaceRx   = regexp.MustCompile(`\s+`)
	nonWordRx = regexp.MustCompile(`[^\w\s';:/-]+`)
	wordRx    = regexp.MustCompile(`[a-z0-9']+`)
)

// Expander rewrites slang and abbreviations into plain words. It is
// immutable after construction and safe for concurrent use.
type Expander struct {
	table map[string]string
	rx    *regexp.Regexp
}

// NewExpander compiles an expander for table. Keys are lower-cased and
// matched case-insensitively on word boundaries, longest key first so that
// "no cap" wins over "cap".
func NewExpander(table map[string]string) *Expander {
	norm := make(map[string]string, len(table))
	keys := make([]string, 0, len(table))
	for k, v := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		norm[k] = strings.ToLower(v)
		keys = append(keys, k)
	}
	e := &Expander{table: norm}
	if len(keys) == 0 {
		return e
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	e.rx = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	return e
}

// ParseSlang decodes a slang table. YAML is a superset of JSON, so both
// formats are accepted.
func ParseSlang(data []byte) (map[string]string, error) {
	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("textnorm: parse slang table: %w", err)
	}
	return table, nil
}

// LoadExpander builds an expander from the file at path. An empty path, a
// missing or unreadable file, or an empty table all yield the embedded
// default table; the returned error explains why the file was not used.
func LoadExpander(path string) (*Expander, error) {
	if path == "" {
		return DefaultExpander(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultExpander(), fmt.Errorf("textnorm: read slang file: %w", err)
	}
	table, err := ParseSlang(data)
	if err != nil {
		return DefaultExpander(), err
	}
	if len(table) == 0 {
		return DefaultExpander(), fmt.Errorf("textnorm: slang file %s is empty", path)
	}
	return NewExpander(table), nil
}

var defaultExpander atomic.Pointer[Expander]

func init() {
	table, err := ParseSlang(defaultSlangYAML)
	if err != nil {
		panic(err)
	}
	defaultExpander.Store(NewExpander(table))
}

// DefaultExpander returns the process-wide expander.
func DefaultExpander() *Expander { return defaultExpander.Load() }

// SetDefault replaces the process-wide expander. It is called once at
// startup after the configured slang file is loaded.
func SetDefault(e *Expander) {
	if e != nil {
		defaultExpander.Store(e)
	}
}

// Expand replaces every slang token in s with its expansion. A token that
// already sits at the tail of its own expansion ("i'm dead" for "dead") is
// left alone, so expanding twice gives the same result as expanding once.
func (e *Expander) Expand(s string) string {
	if s == "" || e == nil || e.rx == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range e.rx.FindAllStringIndex(s, -1) {
		m := strings.ToLower(s[loc[0]:loc[1]])
		v, ok := e.table[m]
		if !ok {
			continue
		}
		if strings.HasSuffix(v, m) && strings.HasSuffix(strings.ToLower(s[:loc[0]]), v[:len(v)-len(m)]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(v)
		last = loc[1]
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// Len reports the number of entries in the table.
func (e *Expander) Len() int { return len(e.table) }

// Expand uses the process-wide expander.
func Expand(s string) string { return DefaultExpander().Expand(s) }

// Clamp collapses whitespace runs, trims, and cuts s to at most max runes.
func Clamp(s string, max int) string {
	s = strings.TrimSpace(spaceRx.ReplaceAllString(s, " "))
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	return s
}

// Lower clamps, lower-cases and slang-expands s. It is the form the cue
// tables match against.
func Lower(s string) string {
	return Expand(strings.ToLower(Clamp(s, 0)))
}

// Normalize returns the recall key form of s: clamped, case-folded,
// slang-expanded, with punctuation runs collapsed to single spaces.
func Normalize(s string) string {
	s = Expand(strings.ToLower(Clamp(s, MaxChars)))
	s = nonWordRx.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRx.ReplaceAllString(s, " "))
}

// Tokens splits normalized text into lower-case word tokens.
func Tokens(s string) []string {
	return wordRx.FindAllString(s, -1)
}

// Shingles returns the set of word trigrams of tokens. Inputs with fewer
// than three tokens fall back to their unigrams plus, for exactly two
// tokens, the bigram.
func Shingles(tokens []string) map[string]struct{} {
	set := make(map[string]struct{})
	switch {
	case len(tokens) >= 3:
		for i := 0; i+2 < len(tokens); i++ {
			set[tokens[i]+" "+tokens[i+1]+" "+tokens[i+2]] = struct{}{}
		}
	default:
		for _, t := range tokens {
			set[t] = struct{}{}
		}
		if len(tokens) == 2 {
			set[tokens[0]+" "+tokens[1]] = struct{}{}
		}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for g := range small {
		if _, ok := large[g]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
