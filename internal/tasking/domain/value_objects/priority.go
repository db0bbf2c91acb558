// Package value_objects contains immutable value types for the tasking domain.
package value_objects

import "fmt"

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates and returns a Priority from its string form.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("invalid priority: %q", s)
	}
}

// String returns the string representation.
func (p Priority) String() string {
	return string(p)
}

// IsUrgent returns true for the highest priority level.
func (p Priority) IsUrgent() bool {
	return p == PriorityUrgent
}

// Weight returns an ordinal for sorting, higher is more urgent.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}
