// Package domain defines the ephemeral alert model. Alerts are derived
// from task state on every request and never persisted.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what condition an alert reports.
type Kind string

const (
	KindOverdue       Kind = "overdue"
	KindDueSoon       Kind = "due-soon"
	KindUrgent        Kind = "urgent"
	KindNewAssignment Kind = "new-assignment"
)

// Severity is an ordinal urgency ranking. Lower rank sorts first.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort ordinal for the severity, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// SeverityFor maps each alert kind to its fixed severity.
func SeverityFor(kind Kind) Severity {
	switch kind {
	case KindOverdue:
		return SeverityCritical
	case KindUrgent:
		return SeverityHigh
	case KindDueSoon:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Alert is one actionable task condition surfaced to a user.
type Alert struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"type"`
	Severity  Severity   `json:"severity"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	TaskID    uuid.UUID  `json:"task_id"`
	TaskTitle string     `json:"task_title"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertID synthesizes the stable identity for a (kind, task) pair.
func AlertID(kind Kind, taskID uuid.UUID) string {
	return string(kind) + "-" + taskID.String()
}

// ParseAlertID splits a synthesized alert ID back into its kind and task
// ID. The kind prefix is matched longest-first since UUIDs contain dashes.
func ParseAlertID(id string) (Kind, uuid.UUID, error) {
	for _, kind := range []Kind{KindNewAssignment, KindDueSoon, KindOverdue, KindUrgent} {
		prefix := string(kind) + "-"
		if strings.HasPrefix(id, prefix) {
			taskID, err := uuid.Parse(strings.TrimPrefix(id, prefix))
			if err != nil {
				return "", uuid.Nil, fmt.Errorf("invalid alert id %q: %w", id, err)
			}
			return kind, taskID, nil
		}
	}
	return "", uuid.Nil, fmt.Errorf("invalid alert id %q", id)
}

// DaysOverdue computes the whole days a due date lies in the past, rounded
// up so a task one hour late counts as one day overdue.
func DaysOverdue(now, due time.Time) int {
	elapsed := now.Sub(due)
	if elapsed <= 0 {
		return 0
	}
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Summary holds the per-category counts returned alongside the alert list.
// Total is the length of the deduplicated list while the category counts
// are raw query sizes, so categories can sum to more than Total.
type Summary struct {
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
	DueSoon int `json:"dueSoon"`
	Urgent  int `json:"urgent"`
	New     int `json:"new"`
}
