// Package memory is the recall store: replies that were offered for an
// incoming message, with the user's ratings, keyed by the normalized
// message text.
//
// Records is the canonical logical format. FileStore persists it as a JSON
// object of objects; Index mirrors it in memory for approximate lookup by
// word-trigram Jaccard similarity.
package memory

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Rating is the user's verdict on a recorded reply: "Y", "N", or empty when
// the reply was offered but never rated. An empty rating is stored as JSON
// null.
type Rating string

const (
	RatingNone Rating = ""
	RatingYes  Rating = "Y"
	RatingNo   Rating = "N"
)

// ParseRating accepts "y"/"Y"/"n"/"N"; anything else is RatingNone.
func ParseRating(s string) Rating {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y":
		return RatingYes
	case "N":
		return RatingNo
	default:
		return RatingNone
	}
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if r == RatingNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = RatingNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Tolerate legacy non-string ratings.
		*r = RatingNone
		return nil
	}
	*r = ParseRating(s)
	return nil
}

// Reply is one recorded suggestion for an incoming message. Resp is its
// identity within an Entry.
type Reply struct {
	Resp   string `json:"resp"`
	Stage  string `json:"stage"`
	Heat   int    `json:"heat"`
	Rating Rating `json:"rating"`
	Reason string `json:"reason"`
	// TS is the commit time in Unix milliseconds.
	TS int64 `json:"ts"`
}

// Entry holds every reply recorded for one key, in commit order.
type Entry struct {
	Items []Reply `json:"items"`
}

// Records maps a MemoryKey to its entry.
type Records map[string]Entry

// Merge folds incoming into existing and reports how many replies were new.
//
// Replies are matched by Resp. A matched reply is replaced in place, except
// that an incoming empty rating keeps the stored rating and an incoming
// empty reason keeps the stored reason. Unmatched replies are appended in
// order. existing is not modified.
func Merge(existing, incoming []Reply) ([]Reply, int) {
	out := make([]Reply, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	pos := make(map[string]int, len(out))
	for i, r := range out {
		pos[r.Resp] = i
	}

	added := 0
	for _, r := range incoming {
		if r.Resp == "" {
			continue
		}
		i, ok := pos[r.Resp]
		if !ok {
			pos[r.Resp] = len(out)
			out = append(out, r)
			added++
			continue
		}
		old := out[i]
		if r.Rating == RatingNone {
			r.Rating = old.Rating
		}
		if r.Reason == "" {
			r.Reason = old.Reason
		}
		out[i] = r
	}
	return out, added
}
