package app

import (
	"strings"
	"time"
)

// Operation identifies one CLI invocation in the log. Every log line of the
// invocation carries its ID, and Close logs how it ended.
type Operation struct {
	ID        string
	Command   string
	Args      []string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation starts an operation for command at now. The ID is the UTC
// start time, which sorts log lines by invocation.
func NewOperation(command string, args []string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405.000Z"),
		Command:   command,
		Args:      args,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the operation as failed. A nil err leaves it unchanged.
func (op *Operation) Fail(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Parameters renders Args for logging.
func (op *Operation) Parameters() string {
	return strings.Join(op.Args, " ")
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
