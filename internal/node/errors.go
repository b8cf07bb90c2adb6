package node

import "errors"

// Domain errors for the node package.
//
// Check them with errors.Is:
//
//	if errors.Is(err, node.ErrInvalidNode) {
//	    // reject the request
//	}
var (
	// ErrInvalidNode is returned by Validate when a record fails strict checks.
	ErrInvalidNode = errors.New("node: invalid")

	// ErrInvalidValue is returned when a field is not valid JSON.
	ErrInvalidValue = errors.New("node: invalid value")

	// ErrInvalidSchema is returned when a schema name is not recognised.
	ErrInvalidSchema = errors.New("node: invalid schema")
)
