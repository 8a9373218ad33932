package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
}

// Service relays notifier events from outbox_events to pubsub. Events of one
// order keep their queue order: they share an ordering key, and once one of
// them fails the rest of that order waits for the next batch.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	repo       outboxRepository
	pubsub     pubSubClient
	registry   registryResolver
	dlq        dlqRepository
	metrics    *metrics.OutboxMetrics
	publishers publisherFactory
	closers    []func()

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	ordered      bool

	jitterMu sync.Mutex
	jitter   *rand.Rand
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config
	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		ordered:      cfg.OrderByOrderID,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	s.publishers = params.PublisherFactory
	if s.publishers == nil {
		s.publishers = s.cachedGCPPublishers()
	}
	return s, nil
}

// cachedGCPPublishers keeps one publisher per topic so batching and ordering
// state survive across polls.
func (s *Service) cachedGCPPublishers() publisherFactory {
	cache := map[string]publisher{}
	return func(topic string) publisher {
		if p, ok := cache[topic]; ok {
			return p
		}
		raw := s.pubsub.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = s.ordered
		p := &gcpPublisher{Publisher: raw}
		cache[topic] = p
		s.closers = append(s.closers, raw.Stop)
		return p
	}
}

// Run polls until ctx is canceled. An empty poll waits one interval; a
// failing poll backs off exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.flush()

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		handled, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled > 0:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := s.sleep(ctx, s.withJitter(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) flush() {
	for _, stop := range s.closers {
		stop()
	}
}

// processBatch claims one batch and settles every row in it. It returns the
// number of rows claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)

		stalled := map[uuid.UUID]bool{}
		for _, event := range events {
			if s.ordered && stalled[event.AggregateID] {
				continue
			}
			outcome, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			s.metrics.IncOutcome(string(event.EventType), outcome)
			if outcome == metrics.OutboxRetried {
				stalled[event.AggregateID] = true
			}
		}
		return nil
	})
	return claimed, err
}

// settle publishes one row and records the result on it. The returned error
// is a storage failure that must abort the batch transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (string, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic
	fields := s.eventFields(event, resolved, topic)

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.ObserveLag(topic, time.Since(event.CreatedAt))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return metrics.OutboxPublished, nil
	}

	var nonRetry registry.NonRetryableError
	switch {
	case errors.Is(pubErr, errNoPublisher):
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonUnroutable, pubErr, topic)
	case errors.As(pubErr, &nonRetry):
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, topic)
	case event.AttemptCount+1 >= s.maxAttempts:
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr), topic)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed; will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return metrics.OutboxRetried, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	fields := s.eventFields(event, nil, topic)
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	if err := s.dlq.InsertTx(tx, event.DeadLetter(reason, cause)); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

var errNoPublisher = errors.New("no publisher for topic")

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return fmt.Errorf("%w %s", errNoPublisher, topic)
	}

	msg := &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	}
	if s.ordered {
		msg.OrderingKey = event.AggregateID.String()
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

// messageAttributes lets subscribers route on the order and recipients
// without decoding the payload.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	env := resolved.Envelope
	attrs := map[string]string{
		"event_id":        env.EventID,
		"event_type":      string(event.EventType),
		"aggregate_type":  string(event.AggregateType),
		"order_id":        event.AggregateID.String(),
		"recipient_count": strconv.Itoa(len(env.Recipients)),
		"schema_version":  strconv.Itoa(env.Version),
		"occurred_at":     env.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil {
		attrs["actor_id"] = env.Actor.UserID.String()
		if env.Actor.Role != "" {
			attrs["actor_role"] = env.Actor.Role
		}
	}
	return attrs
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"order_id":      event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if resolved != nil && resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["recipients"] = len(resolved.Envelope.Recipients)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	s.jitterMu.Lock()
	defer s.jitterMu.Unlock()
	return d + time.Duration(s.jitter.Int63n(int64(jitterWindow)))
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
