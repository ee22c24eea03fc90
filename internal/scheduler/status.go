package scheduler

import "fmt"

// Status is the lifecycle position of one component build.
type Status int32

const (
	Pending Status = iota
	InProgress
	Success
	Failed
	// Skipped means a dependency failed, directly or transitively.
	Skipped
	// Cancelled means the run was cancelled before the build started.
	Cancelled
)

var statusNames = [...]string{
	Pending:    "pending",
	InProgress: "in-progress",
	Success:    "success",
	Failed:     "failed",
	Skipped:    "skipped",
	Cancelled:  "cancelled",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Success || s == Failed || s == Skipped || s == Cancelled
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}
