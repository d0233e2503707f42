package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/observability"
)

const eventBufferSize = 16

// EvaluationEvent announces a completed evaluation to leaderboard watchers.
type EvaluationEvent struct {
	ID          uint      `json:"id"`
	ProjectName string    `json:"project_name"`
	FinalScore  float64   `json:"final_score"`
	Rating      string    `json:"rating"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// EventBroadcaster fans evaluation events out to local subscribers and to
// the other API and worker nodes.
type EventBroadcaster interface {
	Publish(ctx context.Context, event EvaluationEvent)
	Subscribe() (<-chan EvaluationEvent, func())
	Start(ctx context.Context)
}

type eventBroadcaster struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *eventBroker
	nodeID       string
}

type eventEnvelope struct {
	Source string          `json:"source"`
	Event  EvaluationEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan EvaluationEvent]struct{}
}

// NewEventBroadcaster constructs a broadcaster. Remote delivery uses NATS when
// a connection is given, otherwise Redis pub/sub; with neither, events stay
// on this node.
func NewEventBroadcaster(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventBroadcaster {
	if channelBase == "" {
		channelBase = "judge"
	}

	b := &eventBroadcaster{
		logger: logger.With().Str("component", "evaluation_events").Logger(),
		broker: &eventBroker{subscribers: make(map[chan EvaluationEvent]struct{})},
		nodeID: uuid.NewString(),
	}
	switch {
	case natsConn != nil:
		b.nats = natsConn
		b.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".evaluations"
	case redisClient != nil:
		b.redis = redisClient
		b.redisChannel = channelBase + ":evaluations"
	}
	return b
}

func (b *eventBroadcaster) Start(ctx context.Context) {
	if b.redis != nil {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil {
		b.consumeNATS(ctx)
	}
}

func (b *eventBroadcaster) Publish(ctx context.Context, event EvaluationEvent) {
	b.broker.broadcast(event)
	observability.EventsPublished().WithLabelValues("local").Inc()

	if err := b.publish(ctx, event); err != nil {
		b.logger.Warn().Err(err).Uint("evaluation_id", event.ID).Msg("failed to publish evaluation event")
	}
}

func (b *eventBroadcaster) Subscribe() (<-chan EvaluationEvent, func()) {
	channel := make(chan EvaluationEvent, eventBufferSize)

	b.broker.subscribe(channel)
	observability.EventClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.broker.unsubscribe(channel)
			observability.EventClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (b *eventBroadcaster) publish(ctx context.Context, event EvaluationEvent) error {
	if b.redis == nil && b.nats == nil {
		return nil
	}

	payload, err := json.Marshal(eventEnvelope{
		Source: b.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if b.redis != nil {
		return b.redis.Publish(ctx, b.redisChannel, payload).Err()
	}
	return b.nats.Publish(b.natsSubject, payload)
}

func (b *eventBroadcaster) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("evaluation event subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *eventBroadcaster) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats evaluation subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.logger.Warn().Err(err).Msg("failed to release nats evaluation subscription")
		}
	}()
}

func (b *eventBroadcaster) handleEvent(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid evaluation event payload")
		return
	}

	if envelope.Source == b.nodeID {
		return
	}

	observability.EventsPublished().WithLabelValues("remote").Inc()
	b.broker.broadcast(envelope.Event)
}

func (b *eventBroker) subscribe(ch chan EvaluationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[ch] = struct{}{}
}

func (b *eventBroker) unsubscribe(ch chan EvaluationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// broadcast drops the event for subscribers whose buffer is full.
func (b *eventBroker) broadcast(event EvaluationEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
