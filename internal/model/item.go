package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known field names.
const (
	// FieldID holds the globally unique item id.
	FieldID = "id"
	// FieldAuthorID holds the author handle used to address the item.
	FieldAuthorID = "author_id"
	// FieldAuthorUniqueID is where listing collections keep the author handle.
	FieldAuthorUniqueID = "author.uniqueId"
	// FieldDescription is the free-text description.
	FieldDescription = "desc"
	// FieldTextLanguage is the language tag the platform detected for the text.
	FieldTextLanguage = "textLanguage"
	// FieldSubtitleLanguages is an optional precomputed list of subtitle languages.
	FieldSubtitleLanguages = "subtitleLanguages"
	// FieldSubtitleInfos is the raw subtitle track list.
	FieldSubtitleInfos = "video.subtitleInfos"
	// FieldScrapeDate is stamped on every item when it is received.
	FieldScrapeDate = "scrape_date"
)

// Item is a single discovered record.
// Fields are kept exactly as decoded; nested objects are map[string]any
// and arrays are []any.
type Item map[string]any

// ItemKey is the minimal addressing tuple a fetch client needs.
type ItemKey struct {
	AuthorID string `json:"author_id"`
	ID       string `json:"id"`
}

// String returns "author/id".
func (k ItemKey) String() string {
	return k.AuthorID + "/" + k.ID
}

// ID returns the normalized item id, or an empty string if absent.
func (it Item) ID() string {
	return it.String(FieldID)
}

// AuthorID returns the author handle. Records that only carry the nested
// author object (listing collections, related streams) fall back to
// author.uniqueId.
func (it Item) AuthorID() string {
	if a := it.String(FieldAuthorID); a != "" {
		return a
	}
	return it.String(FieldAuthorUniqueID)
}

// Key returns the fetch key of the item.
func (it Item) Key() ItemKey {
	return ItemKey{AuthorID: it.AuthorID(), ID: it.ID()}
}

// Lookup resolves a dotted path such as "video.subtitleInfos".
// A top-level key containing dots is tried first so flattened records work.
func (it Item) Lookup(path string) (any, bool) {
	if it == nil {
		return nil, false
	}
	if v, ok := it[path]; ok {
		return v, v != nil
	}

	var cur any = map[string]any(it)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path formatted as a string.
// Numbers are formatted without exponent so numeric ids stay stable.
// Absent or non-scalar values yield an empty string.
func (it Item) String(path string) string {
	v, ok := it.Lookup(path)
	if !ok {
		return ""
	}
	return scalarString(v)
}

// Strings returns the value at path as a string slice.
// Non-string elements are formatted; a scalar yields a single element.
func (it Item) Strings(path string) []string {
	v, ok := it.Lookup(path)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := scalarString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := scalarString(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

// List returns the value at path as a slice of elements.
func (it Item) List(path string) []any {
	v, ok := it.Lookup(path)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the item.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Stamp sets the scrape date to t in UTC RFC 3339 form.
func (it Item) Stamp(t time.Time) {
	it[FieldScrapeDate] = t.UTC().Format(time.RFC3339)
}

// asMap converts the nested object representations we may see.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Item:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// scalarString formats scalar JSON values.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
