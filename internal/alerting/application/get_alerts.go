// Package application implements alert aggregation over the task store.
package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/taskpulse/internal/alerting/domain"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// Defaults for the alert windows.
const (
	DefaultDueSoonWindow = 48 * time.Hour
	DefaultNewWindow     = 24 * time.Hour
)

// AlertFeed is the response of the alert list endpoint.
type AlertFeed struct {
	Alerts  []domain.Alert `json:"alerts"`
	Summary domain.Summary `json:"summary"`
}

// GetAlertsQuery requests the alert feed for one user.
type GetAlertsQuery struct {
	UserID uuid.UUID
	// Now defaults to the wall clock when zero. Fixing it makes the feed
	// deterministic.
	Now time.Time
}

// GetAlertsHandler aggregates the four task views into one ordered feed.
type GetAlertsHandler struct {
	taskRepo      task.Repository
	dueSoonWindow time.Duration
	newWindow     time.Duration
}

// NewGetAlertsHandler creates a new GetAlertsHandler. Non-positive windows
// fall back to the defaults.
func NewGetAlertsHandler(taskRepo task.Repository, dueSoonWindow, newWindow time.Duration) *GetAlertsHandler {
	if dueSoonWindow <= 0 {
		dueSoonWindow = DefaultDueSoonWindow
	}
	if newWindow <= 0 {
		newWindow = DefaultNewWindow
	}
	return &GetAlertsHandler{
		taskRepo:      taskRepo,
		dueSoonWindow: dueSoonWindow,
		newWindow:     newWindow,
	}
}

// Handle builds the alert feed. The four task queries are independent and
// run concurrently; their relative result order is fixed afterwards by the
// stable sort.
func (h *GetAlertsHandler) Handle(ctx context.Context, q GetAlertsQuery) (*AlertFeed, error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var overdue, dueSoon, urgent, unread []*task.Task

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overdue, err = h.taskRepo.FindOverdue(gctx, q.UserID, now)
		return err
	})
	g.Go(func() error {
		var err error
		dueSoon, err = h.taskRepo.FindDueSoon(gctx, q.UserID, now, h.dueSoonWindow)
		return err
	})
	g.Go(func() error {
		var err error
		urgent, err = h.taskRepo.FindUrgent(gctx, q.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = h.taskRepo.FindUnread(gctx, q.UserID, now.Add(-h.newWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := make([]domain.Alert, 0, len(overdue)+len(dueSoon)+len(urgent)+len(unread))
	seen := make(map[uuid.UUID]struct{})

	for _, t := range overdue {
		alerts = append(alerts, overdueAlert(t, now))
		seen[t.ID()] = struct{}{}
	}
	for _, t := range dueSoon {
		alerts = append(alerts, dueSoonAlert(t, now))
		seen[t.ID()] = struct{}{}
	}
	// Urgent tasks already flagged above are suppressed so the same task
	// does not appear twice. New-assignment alerts are deliberately not
	// deduplicated against the rest.
	for _, t := range urgent {
		if _, dup := seen[t.ID()]; dup {
			continue
		}
		alerts = append(alerts, urgentAlert(t, now))
		seen[t.ID()] = struct{}{}
	}
	for _, t := range unread {
		alerts = append(alerts, newAssignmentAlert(t))
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})

	return &AlertFeed{
		Alerts: alerts,
		Summary: domain.Summary{
			// Category counts are raw query sizes while Total reflects
			// the deduplicated list. Categories can sum past Total.
			Total:   len(alerts),
			Overdue: len(overdue),
			DueSoon: len(dueSoon),
			Urgent:  len(urgent),
			New:     len(unread),
		},
	}, nil
}

// orderingTimestamp picks the secondary sort key for due-date driven
// alerts, falling back to creation time when no due date exists.
func orderingTimestamp(t *task.Task) time.Time {
	if t.DueDate() != nil {
		return *t.DueDate()
	}
	return t.CreatedAt()
}

func overdueAlert(t *task.Task, now time.Time) domain.Alert {
	days := domain.DaysOverdue(now, *t.DueDate())
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return domain.Alert{
		ID:        domain.AlertID(domain.KindOverdue, t.ID()),
		Kind:      domain.KindOverdue,
		Severity:  domain.SeverityCritical,
		Title:     "Task overdue",
		Message:   fmt.Sprintf("%q is overdue by %d %s", t.Title(), days, unit),
		TaskID:    t.ID(),
		TaskTitle: t.Title(),
		DueDate:   t.DueDate(),
		Timestamp: orderingTimestamp(t),
	}
}

func dueSoonAlert(t *task.Task, now time.Time) domain.Alert {
	return domain.Alert{
		ID:        domain.AlertID(domain.KindDueSoon, t.ID()),
		Kind:      domain.KindDueSoon,
		Severity:  domain.SeverityWarning,
		Title:     "Task due soon",
		Message:   fmt.Sprintf("%q is due %s", t.Title(), t.DueDate().Format("Mon, 02 Jan 2006 15:04 MST")),
		TaskID:    t.ID(),
		TaskTitle: t.Title(),
		DueDate:   t.DueDate(),
		Timestamp: orderingTimestamp(t),
	}
}

func urgentAlert(t *task.Task, now time.Time) domain.Alert {
	return domain.Alert{
		ID:        domain.AlertID(domain.KindUrgent, t.ID()),
		Kind:      domain.KindUrgent,
		Severity:  domain.SeverityHigh,
		Title:     "Urgent task",
		Message:   fmt.Sprintf("%q is marked urgent", t.Title()),
		TaskID:    t.ID(),
		TaskTitle: t.Title(),
		DueDate:   t.DueDate(),
		Timestamp: orderingTimestamp(t),
	}
}

func newAssignmentAlert(t *task.Task) domain.Alert {
	return domain.Alert{
		ID:        domain.AlertID(domain.KindNewAssignment, t.ID()),
		Kind:      domain.KindNewAssignment,
		Severity:  domain.SeverityInfo,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("%q was assigned to you", t.Title()),
		TaskID:    t.ID(),
		TaskTitle: t.Title(),
		DueDate:   t.DueDate(),
		Timestamp: t.CreatedAt(),
	}
}
