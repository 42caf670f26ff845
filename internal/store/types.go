package store

import "time"

// ErrorEvent is one intercepted failure as persisted to the audit trail.
type ErrorEvent struct {
	ErrorID   string
	Timestamp time.Time
	Origin    string
	Command   string
	ExitCode  int
	Severity  string
	Recovery  string
	TracePath string
	StatePath string
	Notified  bool
}

// Rotation is one completed rotation pass.
type Rotation struct {
	ID          int64
	Timestamp   time.Time
	File        string
	RotatedTo   string
	PrunedCount int
}
