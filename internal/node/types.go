package node

import (
	"fmt"
	"strings"
)

// Schema selects which field set a deployment's nodes use.
type Schema string

// Supported schema variants.
const (
	// SchemaA nodes carry three hex colour strings.
	SchemaA Schema = "a"

	// SchemaB nodes carry an on/off state, one RGB triple and a brightness.
	SchemaB Schema = "b"
)

// ParseSchema converts a configuration string to a Schema.
// An empty string selects SchemaA.
func ParseSchema(s string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a":
		return SchemaA, nil
	case "b":
		return SchemaB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSchema, s)
	}
}

// Config is the display configuration of one LED node.
//
// It holds the superset of both schema variants. Fields of the inactive
// variant stay absent and are omitted on encode. Members a record carries
// beyond the schema fields are kept in Extra so a rewrite of the document
// never drops them.
type Config struct {
	ID   Value
	Name Value

	// Schema B
	State Value
	R0    Value
	G0    Value
	B0    Value

	// Schema A
	Color0 Value
	Color1 Value
	Color2 Value

	Pattern    Value
	Brightness Value
	Delay      Value

	// Extra holds unknown members in stored order.
	Extra []Member
}

// Member is one named value of a record outside the schema fields.
type Member struct {
	Key   string
	Value Value
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		ID:         c.ID.Clone(),
		Name:       c.Name.Clone(),
		State:      c.State.Clone(),
		R0:         c.R0.Clone(),
		G0:         c.G0.Clone(),
		B0:         c.B0.Clone(),
		Color0:     c.Color0.Clone(),
		Color1:     c.Color1.Clone(),
		Color2:     c.Color2.Clone(),
		Pattern:    c.Pattern.Clone(),
		Brightness: c.Brightness.Clone(),
		Delay:      c.Delay.Clone(),
	}
	if c.Extra != nil {
		out.Extra = make([]Member, len(c.Extra))
		for i, m := range c.Extra {
			out.Extra[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return out
}

// Fields is a request body reduced to top-level field values, keyed by
// field name. Missing keys are absent values.
type Fields map[string]Value

// Get returns the value for key, or an absent Value.
func (f Fields) Get(key string) Value {
	if f == nil {
		return nil
	}
	return f[key]
}

// Action describes what an upsert did.
type Action string

// Upsert outcomes.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Change is delivered to notifiers after an upsert has been flushed.
type Change struct {
	Action Action `json:"action"`
	Node   Config `json:"node"`
}
