package logkit

import (
	"fmt"
	"time"
)

// Record is a single immutable log entry. Records are written append-only
// to the active log file; ordering within one process is write order.
type Record struct {
	Time    time.Time
	Level   Level
	PID     int
	Origin  string // file:line of the call site, optional
	Message string
}

// timeLayout keeps sub-second precision so rapid writes remain ordered
// when read back.
const timeLayout = "2006-01-02 15:04:05.000"

// Format renders the record as a single log line (no trailing newline).
func (r Record) Format() string {
	if r.Origin != "" {
		return fmt.Sprintf("%s [%s] [%d] [%s] %s",
			r.Time.Format(timeLayout), r.Level, r.PID, r.Origin, r.Message)
	}
	return fmt.Sprintf("%s [%s] [%d] %s",
		r.Time.Format(timeLayout), r.Level, r.PID, r.Message)
}
