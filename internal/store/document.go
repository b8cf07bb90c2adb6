package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Collection names.
const (
	CollectionNodes  = "nodes"
	CollectionConfig = "config"
)

// Collections maps a top-level document key to its encoded JSON body.
type Collections map[string]json.RawMessage

// defaultCollections returns the initial document {"nodes":[],"config":{}}.
func defaultCollections() Collections {
	return Collections{
		CollectionNodes:  json.RawMessage(`[]`),
		CollectionConfig: json.RawMessage(`{}`),
	}
}

// fillDefaults adds any missing default collection and reports whether it
// changed anything.
func (c Collections) fillDefaults() bool {
	changed := false
	for name, body := range defaultCollections() {
		if _, ok := c[name]; !ok {
			c[name] = body
			changed = true
		}
	}
	return changed
}

// clone returns a shallow copy; bodies are never mutated in place.
func (c Collections) clone() Collections {
	out := make(Collections, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// orderedNames returns the collection names with "nodes" and "config" first
// and the rest sorted.
func (c Collections) orderedNames() []string {
	names := make([]string, 0, len(c))
	var rest []string
	for _, fixed := range []string{CollectionNodes, CollectionConfig} {
		if _, ok := c[fixed]; ok {
			names = append(names, fixed)
		}
	}
	for name := range c {
		if name != CollectionNodes && name != CollectionConfig {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// EncodeDocument renders the collections as a single JSON object indented
// with two spaces, the layout of db.json.
func EncodeDocument(c Collections) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.orderedNames() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("encoding collection name: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(c[name])
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	return out.Bytes(), nil
}

// DecodeDocument parses a JSON object into collections. Empty input yields
// an empty, non-nil map.
func DecodeDocument(data []byte) (Collections, error) {
	c := Collections{}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	if c == nil {
		// The document was the literal null.
		c = Collections{}
	}
	return c, nil
}
