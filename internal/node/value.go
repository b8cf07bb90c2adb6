package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Value is a single record field held as compact JSON.
//
// A nil Value means the field is absent: it is omitted from encoded records
// (Config skips it on encode) and treated as falsy. The literal JSON null
// is a distinct, present value.
//
// Values are never mutated in place; replace them instead.
type Value []byte

// Kind classifies a Value by its JSON type.
type Kind int

// JSON kinds.
const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns a Value holding the JSON string s. HTML characters are
// left unescaped so encoded records match what a browser would send.
func String(s string) Value {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Encoding a string never fails
		panic(fmt.Sprintf("node: encoding string value: %v", err))
	}
	return Value(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Int returns a Value holding the JSON number n.
func Int(n int64) Value {
	return Value(strconv.FormatInt(n, 10))
}

// Bool returns a Value holding a JSON boolean.
func Bool(b bool) Value {
	return Value(strconv.FormatBool(b))
}

// Null returns a Value holding JSON null.
func Null() Value {
	return Value("null")
}

// Raw returns a Value from arbitrary JSON text in the form a browser's
// JSON.stringify would give it: compact, numbers in shortest form and
// strings with only the required escapes. It returns an error if raw is
// not a single valid JSON value.
func Raw(raw []byte) (Value, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: not a single JSON value", ErrInvalidValue)
	}
	out, err := canonical(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return out, nil
}

// canonical re-encodes valid JSON token by token, keeping member order.
func canonical(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	type frame struct {
		object bool
		n      int
	}
	var (
		buf   bytes.Buffer
		stack []frame
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			buf.WriteByte(byte(d))
			continue
		}

		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			switch {
			case top.n == 0:
			case top.object && top.n%2 == 1:
				buf.WriteByte(':')
			default:
				buf.WriteByte(',')
			}
			top.n++
		}

		switch t := tok.(type) {
		case json.Delim:
			buf.WriteByte(byte(t))
			stack = append(stack, frame{object: t == '{'})
		case json.Number:
			buf.WriteString(canonicalNumber(t))
		case string:
			buf.Write(String(t))
		case bool:
			buf.WriteString(strconv.FormatBool(t))
		case nil:
			buf.WriteString("null")
		}
	}
	return Value(buf.Bytes()), nil
}

// canonicalNumber formats n the way JSON.stringify does. Values outside the
// float64 range become null.
func canonicalNumber(n json.Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsInf(f, 0) {
		return "null"
	}
	if f == 0 {
		// -0 prints as 0
		f = 0
	}
	out, err := json.Marshal(f)
	if err != nil {
		return "null"
	}
	return string(out)
}

// MarshalJSON implements json.Marshaler. An absent value encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler. JSON null is kept as a present
// null value rather than being collapsed to absent.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := Raw(data)
	if err != nil {
		return err
	}
	*v = raw
	return nil
}

// Kind reports the JSON type of v.
func (v Value) Kind() Kind {
	if len(v) == 0 {
		return KindAbsent
	}
	switch v[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	default:
		return KindNumber
	}
}

// IsAbsent reports whether the field was not supplied at all.
func (v Value) IsAbsent() bool {
	return len(v) == 0
}

// IsNull reports whether v is the JSON literal null.
func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Falsy reports whether v is falsy under the loose rules node clients were
// written against: absent, null, false, 0 and "" are falsy, everything else
// (including "0", [] and {}) is truthy.
func (v Value) Falsy() bool {
	switch v.Kind() {
	case KindAbsent, KindNull:
		return true
	case KindBool:
		return string(v) == "false"
	case KindString:
		s, _ := v.AsString()
		return s == ""
	case KindNumber:
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f == 0
	default:
		return false
	}
}

// AsString returns the decoded string if v is a JSON string.
func (v Value) AsString() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsInt returns the integer if v is a JSON number with no fractional part.
func (v Value) AsInt() (int64, bool) {
	if v.Kind() != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// Equal reports strict equality: strings compare by decoded content,
// numbers by numeric value, every other kind by its compact encoding. A
// string never equals a number.
func (v Value) Equal(other Value) bool {
	switch {
	case v.Kind() == KindString && other.Kind() == KindString:
		a, _ := v.AsString()
		b, _ := other.AsString()
		return a == b
	case v.Kind() == KindNumber && other.Kind() == KindNumber:
		a, errA := strconv.ParseFloat(string(v), 64)
		b, errB := strconv.ParseFloat(string(other), 64)
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return bytes.Equal(v, other)
}

// Clone returns a copy that shares no memory with v.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	return append(Value(nil), v...)
}

// String implements fmt.Stringer for logging.
func (v Value) String() string {
	if len(v) == 0 {
		return "<absent>"
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return string(v)
}

// Text returns the decoded content of a string, the JSON text of any other
// present value, and "" when v is absent.
func (v Value) Text() string {
	if len(v) == 0 {
		return ""
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return string(v)
}
