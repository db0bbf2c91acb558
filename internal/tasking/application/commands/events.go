// Package commands contains the write-side handlers of the tasking context.
package commands

import (
	"context"

	"github.com/google/uuid"

	sharedApplication "github.com/felixgeelhaar/taskpulse/internal/shared/application"
	"github.com/felixgeelhaar/taskpulse/internal/shared/domain"
	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/outbox"
)

// stageEvents tags the aggregate's uncommitted events with command metadata
// and writes them to the outbox inside the current transaction.
func stageEvents(ctx context.Context, repo outbox.Repository, events []domain.DomainEvent, userID uuid.UUID) error {
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(userID))

	msgs := make([]*outbox.Message, 0, len(events))
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return repo.SaveBatch(ctx, msgs)
}
