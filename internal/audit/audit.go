// Package audit records and serves the action trail for accounting
// operations. Writes happen inside the same transaction as the mutation
// they describe, through the fund request repository.
package audit

import "time"

// Entry is a single audit record.
type Entry struct {
	ActorID    int64     `json:"user_id"`
	ActorEmail string    `json:"created_by"`
	Action     string    `json:"action"`
	At         time.Time `json:"created_at"`
}
