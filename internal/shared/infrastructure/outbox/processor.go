package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig configures the outbox processor.
type ProcessorConfig struct {
	// PollInterval is how often to check for unpublished messages.
	PollInterval time.Duration
	// BatchSize is the maximum number of messages to process per poll.
	BatchSize int
	// MaxRetries before a message is dead-lettered.
	MaxRetries int
	// RetryBackoffBase is the base delay for exponential backoff.
	RetryBackoffBase time.Duration
	// RetryBackoffMax caps the backoff delay.
	RetryBackoffMax time.Duration
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     5 * time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: 10 * time.Second,
		RetryBackoffMax:  10 * time.Minute,
	}
}

// Stats tracks processor activity.
type Stats struct {
	mu             sync.Mutex
	Published      int64
	Failed         int64
	DeadLettered   int64
	LastPublishAt  time.Time
	LastFailureAt  time.Time
}

func (s *Stats) recordPublished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published++
	s.LastPublishAt = time.Now()
}

func (s *Stats) recordFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
	s.LastFailureAt = time.Now()
}

func (s *Stats) recordDeadLettered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeadLettered++
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() (published, failed, deadLettered int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Published, s.Failed, s.DeadLettered
}

// Processor polls the outbox table and publishes pending messages to the
// event bus. Messages that exhaust their retries are dead-lettered rather
// than blocking the queue.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	stats     Stats

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewProcessor creates a new outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until Stop is called or the
// context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	defer close(p.doneCh)

	p.logger.Info("outbox processor started",
		slog.Duration("poll_interval", p.config.PollInterval),
		slog.Int("batch_size", p.config.BatchSize),
	)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopping", slog.String("reason", "context cancelled"))
			return
		case <-p.stopCh:
			p.logger.Info("outbox processor stopping", slog.String("reason", "stop requested"))
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("outbox batch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Stop signals the processor to stop and waits for the loop to exit.
func (p *Processor) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

// ProcessOnce runs a single batch immediately. Useful for tests and for
// draining the outbox on shutdown.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	return p.processBatch(ctx)
}

func (p *Processor) processBatch(ctx context.Context) error {
	msgs, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("fetching unpublished messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	p.logger.Debug("processing outbox batch", slog.Int("count", len(msgs)))

	for _, msg := range msgs {
		if err := p.publishMessage(ctx, msg); err != nil {
			p.handlePublishFailure(ctx, msg, err)
			continue
		}

		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message published",
				slog.Int64("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.stats.recordPublished()
	}

	return nil
}

func (p *Processor) publishMessage(ctx context.Context, msg *Message) error {
	payload, err := msg.WirePayload()
	if err != nil {
		return fmt.Errorf("building wire payload: %w", err)
	}
	return p.publisher.Publish(ctx, msg.RoutingKey, payload)
}

func (p *Processor) handlePublishFailure(ctx context.Context, msg *Message, pubErr error) {
	if p.shouldDeadLetter(msg) {
		reason := fmt.Sprintf("exceeded %d retries: %v", p.config.MaxRetries, pubErr)
		if err := p.repo.MarkDead(ctx, msg.ID, reason); err != nil {
			p.logger.Error("failed to dead-letter message",
				slog.Int64("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		p.stats.recordDeadLettered()
		p.logger.Warn("message dead-lettered",
			slog.Int64("message_id", msg.ID),
			slog.String("event_type", msg.EventType),
			slog.String("reason", reason),
		)
		return
	}

	nextRetry := time.Now().Add(p.retryBackoff(msg.RetryCount))
	if err := p.repo.MarkFailed(ctx, msg.ID, pubErr.Error(), nextRetry); err != nil {
		p.logger.Error("failed to mark message failed",
			slog.Int64("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.stats.recordFailed()
	p.logger.Warn("message publish failed, scheduled retry",
		slog.Int64("message_id", msg.ID),
		slog.String("event_type", msg.EventType),
		slog.Int("retry_count", msg.RetryCount+1),
		slog.Time("next_retry_at", nextRetry),
		slog.String("error", pubErr.Error()),
	)
}

func (p *Processor) shouldDeadLetter(msg *Message) bool {
	return msg.RetryCount+1 >= p.config.MaxRetries
}

// retryBackoff returns an exponentially growing delay capped at the
// configured maximum.
func (p *Processor) retryBackoff(retryCount int) time.Duration {
	backoff := p.config.RetryBackoffBase
	for i := 0; i < retryCount; i++ {
		backoff *= 2
		if backoff >= p.config.RetryBackoffMax {
			return p.config.RetryBackoffMax
		}
	}
	return backoff
}

// StatsSnapshot exposes the processor counters for health endpoints.
func (p *Processor) StatsSnapshot() (published, failed, deadLettered int64) {
	return p.stats.Snapshot()
}
