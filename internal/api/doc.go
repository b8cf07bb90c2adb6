// Package api implements the HTTP API that LED nodes and the management app
// talk to.
//
// This package provides:
//   - GET / liveness text
//   - GET /config/node for nodes fetching their display configuration
//   - POST /config/node for the management app creating or updating a node
//   - An optional JSON health endpoint and WebSocket change feed
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Wire Format
//
// Responses are encoded the way browsers' JSON.stringify would encode them:
// compact, no HTML escaping and no trailing newline. Nodes with limited JSON
// parsers can ask for the record as a quoted string literal by adding any
// non-empty stringify query parameter.
//
// # Request Bodies
//
// POST bodies may be application/json or application/x-www-form-urlencoded.
// Form values are always strings; JSON values keep their type. Other content
// types are read as an empty body.
package api
