package node

// Fallback values applied on write when the incoming field is falsy.
const (
	DefaultPattern    = "static"
	DefaultDelay      = 1000
	DefaultBrightness = 200
)

// Default returns the record served to nodes that have no stored
// configuration. It is never persisted. Nodes flash this colour to signal
// "connected, but not configured yet".
//
// Every call returns a fresh copy.
func Default(schema Schema) Config {
	if schema == SchemaB {
		return Config{
			ID:         Null(),
			Name:       String("default"),
			State:      Int(1),
			R0:         Int(0x42),
			G0:         Int(0xb0),
			B0:         Int(0xf4),
			Pattern:    String("flash"),
			Brightness: Int(DefaultBrightness),
			Delay:      Int(DefaultDelay),
		}
	}
	return Config{
		ID:      Null(),
		Name:    String("default"),
		Color0:  String("#42b0f4"),
		Color1:  String(""),
		Color2:  String(""),
		Pattern: String("flash"),
		Delay:   Int(DefaultDelay),
	}
}

// NormaliseID maps the ways a client can leave out an identifier (absent,
// null, empty string) onto JSON null, so all of them address the same record.
func NormaliseID(id Value) Value {
	if id.IsAbsent() || id.IsNull() {
		return Null()
	}
	if s, ok := id.AsString(); ok && s == "" {
		return Null()
	}
	return id.Clone()
}

// Build constructs a record from request fields, applying the per-field
// defaulting policy of the given schema. Required fields are copied through
// unchecked; absent stays absent.
func Build(schema Schema, in Fields) Config {
	c := Config{
		ID:      NormaliseID(in.Get("id")),
		Name:    in.Get("name").Clone(),
		Pattern: orDefault(in.Get("pattern"), String(DefaultPattern)),
		Delay:   orDefault(in.Get("delay"), Int(DefaultDelay)),
	}

	switch schema {
	case SchemaB:
		c.State = in.Get("state").Clone()
		c.R0 = in.Get("r0").Clone()
		c.G0 = in.Get("g0").Clone()
		c.B0 = in.Get("b0").Clone()
		c.Brightness = orDefault(in.Get("brightness"), Int(DefaultBrightness))
	default:
		c.Color0 = in.Get("color0").Clone()
		c.Color1 = orDefault(in.Get("color1"), Null())
		c.Color2 = orDefault(in.Get("color2"), Null())
	}

	return c
}

// Merge overwrites every schema field of existing with the fields of update,
// keeping the existing id. Fields outside the schema are left untouched.
func Merge(schema Schema, existing, update Config) Config {
	merged := existing.Clone()
	merged.Name = update.Name.Clone()
	merged.Pattern = update.Pattern.Clone()
	merged.Delay = update.Delay.Clone()

	switch schema {
	case SchemaB:
		merged.State = update.State.Clone()
		merged.R0 = update.R0.Clone()
		merged.G0 = update.G0.Clone()
		merged.B0 = update.B0.Clone()
		merged.Brightness = update.Brightness.Clone()
	default:
		merged.Color0 = update.Color0.Clone()
		merged.Color1 = update.Color1.Clone()
		merged.Color2 = update.Color2.Clone()
	}

	return merged
}

// orDefault returns v, or def when v is falsy.
func orDefault(v, def Value) Value {
	if v.Falsy() {
		return def
	}
	return v.Clone()
}
