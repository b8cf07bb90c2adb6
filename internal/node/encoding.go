package node

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// fieldNames lists the schema fields in wire order.
var fieldNames = [...]string{
	"id", "name",
	"state", "r0", "g0", "b0",
	"color0", "color1", "color2",
	"pattern", "brightness", "delay",
}

// fields returns pointers to the schema fields, aligned with fieldNames.
func (c *Config) fields() [len(fieldNames)]*Value {
	return [...]*Value{
		&c.ID, &c.Name,
		&c.State, &c.R0, &c.G0, &c.B0,
		&c.Color0, &c.Color1, &c.Color2,
		&c.Pattern, &c.Brightness, &c.Delay,
	}
}

// field returns the schema field named key, or nil for any other key.
func (c *Config) field(key string) *Value {
	for i, name := range fieldNames {
		if name == key {
			return c.fields()[i]
		}
	}
	return nil
}

// setExtra stores an unknown member. A repeated key replaces the earlier
// value in place.
func (c *Config) setExtra(key string, v Value) {
	for i := range c.Extra {
		if c.Extra[i].Key == key {
			c.Extra[i].Value = v
			return
		}
	}
	c.Extra = append(c.Extra, Member{Key: key, Value: v})
}

// MarshalJSON encodes the present schema fields in wire order followed by
// the extra members.
func (c Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	write := func(key string, v Value) {
		if v.IsAbsent() {
			return
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		buf.Write(String(key))
		buf.WriteByte(':')
		buf.Write(v)
	}

	for i, v := range c.fields() {
		write(fieldNames[i], *v)
	}
	for _, m := range c.Extra {
		if c.field(m.Key) != nil {
			continue
		}
		write(m.Key, m.Value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a stored record. Unknown members go to Extra and a
// missing id stays absent.
func (c *Config) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: record is not an object", ErrInvalidValue)
	}

	out := Config{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected token %v", ErrInvalidValue, tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: member %q: %w", ErrInvalidValue, key, err)
		}
		v, err := Raw(raw)
		if err != nil {
			return fmt.Errorf("member %q: %w", key, err)
		}

		if f := out.field(key); f != nil {
			*f = v
		} else {
			out.setExtra(key, v)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	*c = out
	return nil
}
