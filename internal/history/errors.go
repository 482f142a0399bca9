package history

import "errors"

// History errors.
var (
	// ErrTokenMismatch indicates that a rewrite's token total does not
	// equal the sum of its message metadata.
	ErrTokenMismatch = errors.New("history: rewrite token total does not match metadata sum")
)
