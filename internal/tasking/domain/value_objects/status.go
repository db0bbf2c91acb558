package value_objects

import "fmt"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus validates and returns a Status from its string form.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsOpen returns true if the task still needs work.
func (s Status) IsOpen() bool {
	return s != StatusCompleted
}
