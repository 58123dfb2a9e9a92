package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a run or worker identifier.
// ULIDs are fixed-length (26 characters) and alphanumeric, which is what
// scripts see as WORKER_ID.
func NewID() string {
	return ulid.Make().String()
}
