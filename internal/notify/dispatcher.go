package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// taskEventPayload is the subset of task event fields the dispatcher needs
// to pick recipients.
type taskEventPayload struct {
	TaskID     uuid.UUID  `json:"task_id"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	AssignedTo *uuid.UUID `json:"assigned_to"`
	AssignedBy uuid.UUID  `json:"assigned_by"`
	AuthorID   uuid.UUID  `json:"author_id"`
	Title      string     `json:"title"`
}

// Dispatcher consumes task domain events and pushes notifications to the
// affected users. The actor of a change is never notified about it.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// EventTypes returns the routing keys the dispatcher subscribes to.
func (d *Dispatcher) EventTypes() []string {
	return []string{
		task.RoutingKeyCreated,
		task.RoutingKeyAssigned,
		task.RoutingKeyUpdated,
		task.RoutingKeyCompleted,
		task.RoutingKeyCommented,
	}
}

// Handle fans one consumed event out to its recipients.
func (d *Dispatcher) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var payload taskEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshaling task event payload: %w", err)
	}

	actor := event.Metadata.UserID
	notification := notificationFor(event.RoutingKey, payload)
	notification.OccurredAt = event.OccurredAt

	var lastErr error
	for _, recipient := range recipients(event.RoutingKey, payload, actor) {
		if err := d.notifier.Push(ctx, recipient, notification); err != nil {
			d.logger.Error("failed to push notification",
				slog.String("routing_key", event.RoutingKey),
				slog.String("recipient", recipient.String()),
				slog.String("error", err.Error()),
			)
			lastErr = err
		}
	}
	return lastErr
}

// recipients selects who should hear about an event, excluding the actor.
func recipients(routingKey string, p taskEventPayload, actor uuid.UUID) []uuid.UUID {
	var candidates []uuid.UUID

	switch routingKey {
	case task.RoutingKeyCreated, task.RoutingKeyAssigned:
		if p.AssignedTo != nil {
			candidates = append(candidates, *p.AssignedTo)
		}
	case task.RoutingKeyUpdated:
		if p.AssignedTo != nil {
			candidates = append(candidates, *p.AssignedTo)
		}
		candidates = append(candidates, p.CreatedBy)
	case task.RoutingKeyCompleted:
		candidates = append(candidates, p.CreatedBy)
	case task.RoutingKeyCommented:
		candidates = append(candidates, p.CreatedBy)
		if p.AssignedTo != nil {
			candidates = append(candidates, *p.AssignedTo)
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == actor || c == uuid.Nil {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func notificationFor(routingKey string, p taskEventPayload) Notification {
	n := Notification{
		Event:  routingKey,
		TaskID: p.TaskID,
		Title:  p.Title,
	}

	switch routingKey {
	case task.RoutingKeyCreated, task.RoutingKeyAssigned:
		n.Message = fmt.Sprintf("%q was assigned to you", p.Title)
	case task.RoutingKeyUpdated:
		n.Message = fmt.Sprintf("%q was updated", p.Title)
	case task.RoutingKeyCompleted:
		n.Message = fmt.Sprintf("%q was completed", p.Title)
	case task.RoutingKeyCommented:
		n.Message = fmt.Sprintf("New comment on %q", p.Title)
	}
	return n
}
