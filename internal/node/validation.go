package node

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation limits for strict mode.
const (
	maxNameLength    = 100
	maxPatternLength = 32
	maxChannel       = 255
	maxDelayMillis   = 24 * 60 * 60 * 1000
)

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks a built record against the schema's field types and
// ranges. It reports every problem found, wrapped in ErrInvalidNode.
//
// Null identifiers are rejected: in strict mode every node must be
// individually addressable.
func Validate(schema Schema, c Config) error {
	var problems []string

	if s, ok := c.ID.AsString(); !ok || s == "" {
		problems = append(problems, "id must be a non-empty string")
	}

	if s, ok := c.Name.AsString(); !ok {
		problems = append(problems, "name is required")
	} else if len(s) > maxNameLength {
		problems = append(problems, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}

	if s, ok := c.Pattern.AsString(); !ok || len(s) > maxPatternLength {
		problems = append(problems, fmt.Sprintf("pattern must be a string of at most %d characters", maxPatternLength))
	}

	if !inRange(c.Delay, 0, maxDelayMillis) {
		problems = append(problems, "delay must be a non-negative integer of milliseconds")
	}

	switch schema {
	case SchemaB:
		problems = append(problems, validateSchemaB(c)...)
	default:
		problems = append(problems, validateSchemaA(c)...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidNode, strings.Join(problems, "; "))
	}
	return nil
}

func validateSchemaA(c Config) []string {
	var problems []string

	if !isHexColor(c.Color0) {
		problems = append(problems, "color0 must be a #rrggbb colour")
	}
	if !c.Color1.IsNull() && !isHexColor(c.Color1) {
		problems = append(problems, "color1 must be null or a #rrggbb colour")
	}
	if !c.Color2.IsNull() && !isHexColor(c.Color2) {
		problems = append(problems, "color2 must be null or a #rrggbb colour")
	}

	return problems
}

func validateSchemaB(c Config) []string {
	var problems []string

	if c.State.Kind() != KindBool && !inRange(c.State, 0, 1) {
		problems = append(problems, "state must be 0, 1 or a boolean")
	}
	for _, ch := range []struct {
		name string
		v    Value
	}{{"r0", c.R0}, {"g0", c.G0}, {"b0", c.B0}, {"brightness", c.Brightness}} {
		if !inRange(ch.v, 0, maxChannel) {
			problems = append(problems, fmt.Sprintf("%s must be an integer between 0 and %d", ch.name, maxChannel))
		}
	}

	return problems
}

func isHexColor(v Value) bool {
	s, ok := v.AsString()
	return ok && hexColorRegex.MatchString(s)
}

func inRange(v Value, lo, hi int64) bool {
	n, ok := v.AsInt()
	return ok && n >= lo && n <= hi
}
