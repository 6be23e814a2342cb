package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db/models"
	"github.com/angelmondragon/banksampah-backend/pkg/enums"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxErrorBackoff    = 10 * time.Second
	jitterPercent      = 20
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

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// permanentError marks failures a later attempt cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...any) error {
	return permanentError{fmt.Errorf(format, args...)}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

type batchStats struct {
	published, retried, terminal int
}

func (b *batchStats) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeTerminal:
		b.terminal++
	}
}

func (b batchStats) total() int { return b.published + b.retried + b.terminal }

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Decoders         payloadDecoder
	PublisherFactory publisherFactory
}

// Service drains outbox_events onto the ledger topic. Every fetched row ends
// the batch published, scheduled for retry or terminal.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	decoders         payloadDecoder
	pubsub           pubSubClient
	publisherFactory publisherFactory
	topic            string
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}
	topic := strings.TrimSpace(params.Config.PubSub.LedgerTopic)
	if topic == "" {
		return nil, errors.New("ledger topic is required")
	}

	s := &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		decoders:         params.Decoders,
		pubsub:           params.PubSub,
		publisherFactory: params.PublisherFactory,
		topic:            topic,
		batchSize:        params.Config.Outbox.BatchSize,
		maxAttempts:      params.Config.Outbox.MaxAttempts,
		pollInterval:     time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if s.decoders == nil {
		s.decoders = outbox.LedgerDecoders()
	}
	if s.publisherFactory == nil {
		s.publisherFactory = cachedPublishers(params.PubSub)
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPoll
	}
	return s, nil
}

func cachedPublishers(client pubSubClient) publisherFactory {
	cache := map[string]publisher{}
	return func(topic string) publisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		pub := &gcpPublisher{Publisher: p}
		cache[topic] = pub
		return pub
	}
}

// Run polls until ctx is done. An empty poll waits one interval; a failed
// batch waits on an exponential, jittered backoff that resets on success.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	backoff := s.errorBackoff()
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch.failed", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = s.errorBackoff()
			continue
		default:
			backoff = s.errorBackoff()
			wait = s.pollInterval
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Service) errorBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(maxErrorBackoff, b)
	return retry.WithJitterPercent(jitterPercent, b)
}

// processBatch settles one page of pending rows inside a single transaction.
// A failing row never stops the rest of the page.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			o, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			stats.add(o)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if stats.total() > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"published": stats.published,
			"retried":   stats.retried,
			"terminal":  stats.terminal,
		}), "outbox.batch")
	}
	return stats.total() > 0, nil
}

// settle publishes one row and records the result. The returned error is a
// bookkeeping failure that aborts the transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	envelope, err := s.decode(event)
	if err == nil {
		err = s.publish(ctx, event, envelope)
	}
	ctx = s.logg.WithFields(ctx, s.eventFields(event, envelope))

	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return 0, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(ctx, "outbox.published")
		return outcomePublished, nil
	}

	attempt := event.AttemptCount + 1
	ctx = s.logg.WithFields(ctx, map[string]any{"attempt_count": attempt, "error": err.Error()})
	var perm permanentError
	if errors.As(err, &perm) || attempt >= s.maxAttempts {
		if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
			return 0, fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
		}
		s.logg.Warn(ctx, "outbox.terminal")
		return outcomeTerminal, nil
	}
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return 0, fmt.Errorf("mark failed %s: %w", event.ID, markErr)
	}
	s.logg.Warn(ctx, "outbox.retry")
	return outcomeRetry, nil
}

func (s *Service) decode(event models.OutboxEvent) (outbox.PayloadEnvelope, error) {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return envelope, permanent("decode envelope: %w", err)
	}
	if _, err := s.decoders.Decode(event.EventType, envelope.Version, envelope.Data); err != nil {
		return envelope, permanent("decode %s v%d: %w", event.EventType, envelope.Version, err)
	}
	return envelope, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	pub := s.publisherFactory(s.topic)
	if pub == nil {
		return permanent("no publisher for topic %s", s.topic)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, envelope),
	})
	if result == nil {
		return permanent("publisher returned no result for topic %s", s.topic)
	}
	_, err := result.Get(ctx)
	return err
}

func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	return map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"schema_version": strconv.Itoa(envelope.Version),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"topic":          s.topic,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
