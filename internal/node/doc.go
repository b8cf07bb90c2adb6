// Package node holds the LED node configuration model and the registry
// that reads and upserts it.
//
// A node fetches its configuration by identifier; a management client
// pushes new configuration with an upsert. Records are never deleted.
//
// # Key Types
//
//   - Config: one node's display configuration (superset of both schemas)
//   - Value: a raw JSON field, distinguishing absent from null
//   - Registry: find-by-id and upsert-by-id over a Collection
//
// # Write Policy
//
// Build applies the defaulting policy to an incoming request: pattern,
// delay, brightness and the secondary colours fall back to fixed values
// when falsy, all other fields are copied through as supplied. Validate is
// only consulted when the registry runs in strict mode.
//
// # Usage
//
//	registry := node.NewRegistry(st, node.SchemaA)
//	registry.SetLogger(log)
//	cfg, created, err := registry.Upsert(ctx, node.Fields{"id": node.String("node1")})
package node
