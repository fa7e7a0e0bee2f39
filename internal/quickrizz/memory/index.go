package memory

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// Options tunes recall.
type Options struct {
	// Disabled turns Similar into a no-op.
	Disabled bool
	// TopK is the default result count for Similar. Defaults to 5.
	TopK int
	// MinJaccard is the lowest similarity Similar returns. Defaults to 0.22.
	MinJaccard float64
	// MinLen is the shortest query, in runes after trimming, that Similar
	// considers. Defaults to 6.
	MinLen int
	// PreferLiked makes BestLinesFor return Y-rated replies when any exist.
	PreferLiked bool
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.MinJaccard <= 0 {
		o.MinJaccard = 0.22
	}
	if o.MinLen <= 0 {
		o.MinLen = 6
	}
	return o
}

// Match is one Similar result.
type Match struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Stats summarises the index for status reporting.
type Stats struct {
	Keys     int `json:"keys"`
	Shingles int `json:"shingles"`
}

type shingleSet = map[string]struct{}

// Index is the in-memory mirror of the recall store.
//
// The index owns its tables; callers mutate it only through Build and
// Upsert. Lookups share a read lock and never observe a half-applied
// Upsert.
type Index struct {
	opts Options

	mu       sync.RWMutex
	entries  map[string]Entry
	keyGrams map[string]shingleSet
	postings map[string]map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex(opts Options) *Index {
	return &Index{
		opts:     opts.withDefaults(),
		entries:  make(map[string]Entry),
		keyGrams: make(map[string]shingleSet),
		postings: make(map[string]map[string]struct{}),
	}
}

func keyShingles(text string) shingleSet {
	return textnorm.Shingles(textnorm.Tokens(textnorm.Normalize(text)))
}

// Build replaces the whole index with recs.
func (ix *Index) Build(recs Records) {
	entries := make(map[string]Entry, len(recs))
	keyGrams := make(map[string]shingleSet, len(recs))
	postings := make(map[string]map[string]struct{})
	for key, e := range recs {
		entries[key] = e
		grams := keyShingles(key)
		keyGrams[key] = grams
		for g := range grams {
			ks, ok := postings[g]
			if !ok {
				ks = make(map[string]struct{})
				postings[g] = ks
			}
			ks[key] = struct{}{}
		}
	}

	ix.mu.Lock()
	ix.entries, ix.keyGrams, ix.postings = entries, keyGrams, postings
	ix.mu.Unlock()

	slog.Info("memory: index built", "keys", len(entries), "shingles", len(postings))
}

// Upsert replaces the entry for key and re-indexes it.
func (ix *Index) Upsert(key string, items []Reply) {
	grams := keyShingles(key)
	stored := Entry{Items: append([]Reply(nil), items...)}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for g := range ix.keyGrams[key] {
		if ks, ok := ix.postings[g]; ok {
			delete(ks, key)
			if len(ks) == 0 {
				delete(ix.postings, g)
			}
		}
	}
	ix.entries[key] = stored
	ix.keyGrams[key] = grams
	for g := range grams {
		ks, ok := ix.postings[g]
		if !ok {
			ks = make(map[string]struct{})
			ix.postings[g] = ks
		}
		ks[key] = struct{}{}
	}
}

// Similar returns up to topK keys whose shingles overlap text with a
// Jaccard score at or above the threshold, best first, ties by key. A
// topK of zero or less uses the configured default.
func (ix *Index) Similar(text string, topK int) []Match {
	if ix.opts.Disabled {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < ix.opts.MinLen {
		return nil
	}
	if topK <= 0 {
		topK = ix.opts.TopK
	}
	q := keyShingles(text)
	if len(q) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []Match
	for g := range q {
		for key := range ix.postings[g] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if score := textnorm.Jaccard(q, ix.keyGrams[key]); score >= ix.opts.MinJaccard {
				out = append(out, Match{Key: key, Score: score})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// BestLinesFor returns up to limit reply texts for key. With PreferLiked set
// and at least one Y-rated reply, only Y-rated replies are returned;
// otherwise any replies in stored order.
func (ix *Index) BestLinesFor(key string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	ix.mu.RLock()
	items := ix.entries[key].Items
	ix.mu.RUnlock()

	pick := func(keep func(Reply) bool) []string {
		var out []string
		for _, it := range items {
			if len(out) == limit {
				break
			}
			line := textnorm.Clamp(it.Resp, 0)
			if line != "" && keep(it) {
				out = append(out, line)
			}
		}
		return out
	}
	if ix.opts.PreferLiked {
		if liked := pick(func(r Reply) bool { return r.Rating == RatingYes }); len(liked) > 0 {
			return liked
		}
	}
	return pick(func(Reply) bool { return true })
}

// Entry returns a copy of the entry stored for key.
func (ix *Index) Entry(key string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Items: append([]Reply(nil), e.Items...)}, true
}

// Stats reports the number of keys and distinct shingles.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{Keys: len(ix.entries), Shingles: len(ix.postings)}
}
