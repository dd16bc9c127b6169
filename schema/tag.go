package schema

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Tag is one key:"value" pair of a struct field tag, exposed as an
// annotation on the field. `json:"name,omitempty"` becomes
// Tag{Key: "json", Name: "name", Options: ["omitempty"]}.
type Tag struct {
	Key     string
	Name    string
	Options []string
	Raw     string
}

// Has reports whether the tag carries an option, "omitempty" or "primary".
// Options in key:value form match on their key.
func (t Tag) Has(option string) bool {
	_, ok := t.Option(option)
	return ok
}

// Option returns the value of a key:value option (`db:"id;type:uuid"`).
func (t Tag) Option(key string) (string, bool) {
	for _, opt := range t.Options {
		k, v, _ := strings.Cut(opt, ":")
		if strings.TrimSpace(k) == key {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// TagParser splits raw struct tags into Tag annotations and caches the
// result per distinct tag string.
type TagParser struct {
	cache   map[reflect.StructTag][]Tag
	cacheMu sync.RWMutex
}

// NewTagParser creates a parser with an empty cache.
func NewTagParser() *TagParser {
	return &TagParser{
		cache: make(map[reflect.StructTag][]Tag, 64),
	}
}

// Parse returns the tags of a struct field in declaration order. Malformed
// trailing input is ignored the way reflect.StructTag.Lookup ignores it.
func (p *TagParser) Parse(tag reflect.StructTag) []Tag {
	if tag == "" {
		return nil
	}

	p.cacheMu.RLock()
	if cached, exists := p.cache[tag]; exists {
		p.cacheMu.RUnlock()
		return cached
	}
	p.cacheMu.RUnlock()

	parsed := parseStructTag(string(tag))

	p.cacheMu.Lock()
	p.cache[tag] = parsed
	p.cacheMu.Unlock()

	return parsed
}

// ClearCache removes all cached parsed tags.
func (p *TagParser) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clear(p.cache)
}

// CacheSize returns the number of distinct tags parsed so far.
func (p *TagParser) CacheSize() int {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return len(p.cache)
}

// parseStructTag splits a raw struct tag into its key:"value" pairs in
// declaration order. Parsing stops at the first malformed pair.
func parseStructTag(tag string) []Tag {
	var tags []Tag
	for {
		tag = strings.TrimLeft(tag, " ")
		colon := strings.IndexByte(tag, ':')
		if colon <= 0 || !validTagKey(tag[:colon]) {
			return tags
		}
		key, rest := tag[:colon], tag[colon+1:]

		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil || quoted[0] != '"' {
			return tags
		}
		value, err := strconv.Unquote(quoted)
		if err != nil {
			return tags
		}
		tags = append(tags, splitTagValue(key, value))
		tag = rest[len(quoted):]
	}
}

// validTagKey rejects keys holding spaces, quotes or control characters.
func validTagKey(key string) bool {
	return !strings.ContainsFunc(key, func(r rune) bool {
		return r <= ' ' || r == '"' || r == 0x7f
	})
}

// splitTagValue separates the leading name from its options. Both the
// comma form (json, yaml) and the semicolon form (db) are accepted.
func splitTagValue(key, value string) Tag {
	t := Tag{Key: key, Raw: value}
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	if len(parts) == 0 {
		return t
	}

	first := strings.TrimSpace(parts[0])
	rest := parts[1:]
	if strings.Contains(first, ":") {
		// `db:"type:uuid;primary"` has no leading name
		rest = parts
		first = ""
	}
	// A leading separator means an empty name: `json:",omitempty"`
	if value[0] == ',' || value[0] == ';' {
		rest = parts
		first = ""
	}

	t.Name = first
	for _, opt := range rest {
		if opt = strings.TrimSpace(opt); opt != "" {
			t.Options = append(t.Options, opt)
		}
	}
	return t
}
