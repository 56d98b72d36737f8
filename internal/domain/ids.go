package domain

import "github.com/oklog/ulid/v2"

// NewJobID returns a lexicographically time-ordered job identifier.
func NewJobID() string {
	return ulid.Make().String()
}
